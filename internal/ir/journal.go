package ir

// Session groups the writes made by one varpath process against one layout.
type Session struct {
	ID         string `json:"id"`          // UUIDv7
	LayoutHash string `json:"layout_hash"` // LayoutHash of the layout active at session start
	Source     string `json:"source"`      // layout source path
	Writes     int    `json:"writes"`      // number of journaled writes (read side only)
}

// WriteRecord is one journaled Set.
// Address and Size describe where the value landed under the layout identified by
// LayoutHash; replay re-resolves Path instead of trusting them.
type WriteRecord struct {
	ID         string `json:"id"` // WriteID
	SessionID  string `json:"session_id"`
	Seq        int64  `json:"seq"` // logical clock
	Path       string `json:"path"`
	Value      Value  `json:"value"`
	Address    uint64 `json:"address"`
	Size       int64  `json:"size"`
	LayoutHash string `json:"layout_hash"`
}
