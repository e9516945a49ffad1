package core

// Media represents a non-text attachment on a message. Concrete media types
// implement the unexported isMedia marker enabling a closed set.
type Media interface{ isMedia() }

// Image is an image attachment referenced by URL or carried inline.
type Image struct {
	URL      string `json:"url,omitempty"`
	Content  []byte `json:"content,omitempty"` // Raw bytes when inlined
	MimeType string `json:"mime_type,omitempty"`
	Detail   string `json:"detail,omitempty"` // Provider hint: low, high, auto
}

func (Image) isMedia() {}

// Audio is an audio attachment or an audio chunk produced by a model.
type Audio struct {
	URL        string `json:"url,omitempty"`
	Content    []byte `json:"content,omitempty"`
	Format     string `json:"format,omitempty"` // wav, mp3, ...
	Transcript string `json:"transcript,omitempty"`
}

func (Audio) isMedia() {}

// Video is a video attachment.
type Video struct {
	URL      string `json:"url,omitempty"`
	Content  []byte `json:"content,omitempty"`
	MimeType string `json:"mime_type,omitempty"`
}

func (Video) isMedia() {}
