package models

// These structs define the JSON payloads accepted and returned by the
// packer Cloud Functions.

// PackInput names one source object. Fields seeds the item's FieldMap.
type PackInput struct {
	Object   string            `json:"object"`
	MIMEType string            `json:"mimeType,omitempty"`
	Fields   map[string]string `json:"fields,omitempty"`
}

// PackRequest is the input for the document-packer function. Either Inputs or
// Prefix must be set; with Prefix, objects are packed in name order.
type PackRequest struct {
	Bucket   string      `json:"bucket"`
	Inputs   []PackInput `json:"inputs,omitempty"`
	Prefix   string      `json:"prefix,omitempty"`
	Template string      `json:"template,omitempty"`
	Redact   *bool       `json:"redact,omitempty"`
}

// PackResponse is the output of the document-packer function.
type PackResponse struct {
	Status      string       `json:"status"`
	PackID      string       `json:"packId"`
	ArchiveURI  string       `json:"archiveUri"`
	ManifestURI string       `json:"manifestUri"`
	Manifest    string       `json:"manifest"`
	Items       []ItemUpdate `json:"items"`
	Reused      bool         `json:"reused,omitempty"`
}

// RecompressPayload is the argument of the server-side recompression workflow.
type RecompressPayload struct {
	PackID     string   `json:"packId"`
	ArchiveURI string   `json:"archiveUri"`
	Items      []string `json:"items"`
}
