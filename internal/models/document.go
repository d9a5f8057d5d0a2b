package models

import "time"

// Kind discriminates the two supported input families.
type Kind string

const (
	KindPDF   Kind = "pdf"
	KindImage Kind = "image"
)

// Status tracks a DocumentItem through the batch.
type Status string

const (
	StatusQueued Status = "queued"
	StatusReady  Status = "ready"
	StatusError  Status = "error"
)

// FieldMap holds the naming metadata of one item. An empty value is a valid
// "unset" value and is distinct from an absent key.
type FieldMap map[string]string

// Clone returns a copy that can be extended without touching the receiver.
func (f FieldMap) Clone() FieldMap {
	out := make(FieldMap, len(f)+3)
	for k, v := range f {
		out[k] = v
	}
	return out
}

// DocumentItem is one input file of a batch. Data is owned by the item and is
// never mutated by the packing pipeline.
type DocumentItem struct {
	ID            string
	Name          string
	MIMEType      string
	Data          []byte
	Kind          Kind
	OriginalSize  int64
	EstimatedSize *int64
	Status        Status
	Fields        FieldMap

	// Set once a pack containing this item succeeds.
	RenderedName      string
	FinalSize         int64
	ServerRecommended bool
	Note              string
}

// PackOptions is the per-call feature configuration of a pack run.
type PackOptions struct {
	Redact     bool
	OCREnabled bool
	AIEnabled  bool
}

// ItemUpdate correlates a packed output back to its DocumentItem by ID.
type ItemUpdate struct {
	ID                string `json:"id" firestore:"id"`
	RenderedName      string `json:"renderedName" firestore:"renderedName"`
	FinalSize         int64  `json:"finalSize" firestore:"finalSize"`
	ServerRecommended bool   `json:"serverRecommended" firestore:"serverRecommended"`
	Note              string `json:"note,omitempty" firestore:"note,omitempty"`
}

// ManifestEntry is one line of the pack manifest.
type ManifestEntry struct {
	OriginalName string
	RenderedName string
	OriginalSize int64
	FinalSize    int64
	SHA256Hex    string
	Timestamp    string
}

// PackResult is everything a successful pack produces.
type PackResult struct {
	Archive  []byte
	Manifest string
	Entries  []ManifestEntry
	Updates  []ItemUpdate
}

// ApplyUpdates copies the post-pack fields onto the matching items and marks
// them ready. Items without an update are left untouched.
func ApplyUpdates(items []*DocumentItem, updates []ItemUpdate) {
	byID := make(map[string]ItemUpdate, len(updates))
	for _, u := range updates {
		byID[u.ID] = u
	}
	for _, it := range items {
		u, ok := byID[it.ID]
		if !ok {
			continue
		}
		it.RenderedName = u.RenderedName
		it.FinalSize = u.FinalSize
		it.ServerRecommended = u.ServerRecommended
		it.Note = u.Note
		it.Status = StatusReady
	}
}

// Suggestion is the AI hint returned for recognized document text.
type Suggestion struct {
	DocType         string   `json:"DocType,omitempty"`
	Side            string   `json:"Side,omitempty"`
	ImportantFields []string `json:"ImportantFields,omitempty"`
}

// PackRecord is the Firestore record of one pack run.
type PackRecord struct {
	BatchHash    string       `firestore:"batchHash,omitempty"`
	Template     string       `firestore:"template,omitempty"`
	Redact       bool         `firestore:"redact"`
	Status       string       `firestore:"status,omitempty"`
	ErrorDetails string       `firestore:"errorDetails,omitempty"`
	ItemCount    int          `firestore:"itemCount,omitempty"`
	ArchiveURI   string       `firestore:"archiveUri,omitempty"`
	ManifestURI  string       `firestore:"manifestUri,omitempty"`
	Items        []ItemUpdate `firestore:"items,omitempty"`
	CreatedAt    time.Time    `firestore:"createdAt,omitempty"`
}
