package xmlutils

// DAV holds the XPath expressions used to read WebDAV multistatus
// responses. xmlpath matches on local element names, so the DAV: namespace
// prefix is irrelevant here.
var DAV = struct {
	// Response selects each response element of a multistatus document.
	Response string
	// Href is the resource path, relative to a response node.
	Href string
	// Collection matches when the resource is a folder, relative to a
	// response node.
	Collection string
	// Status is the propstat HTTP status line, relative to a response node.
	Status string
}{
	Response:   "/multistatus/response",
	Href:       "href",
	Collection: "propstat/prop/resourcetype/collection",
	Status:     "propstat/status",
}
