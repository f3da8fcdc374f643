package models

// MultipartSubtype values for Message.Subtype.
const (
	SubtypePlain = "plain"
	SubtypeHTML  = "html"
)

// Attachment is a file attached to a Message, either read from Path or
// taken from Content.
type Attachment struct {
	Path        string            `json:"path"`
	Filename    string            `json:"filename"`
	Content     []byte            `json:"content,omitempty"`
	MimeType    string            `json:"mime_type"`
	MimeSubtype string            `json:"mime_subtype"`
	Headers     map[string]string `json:"headers,omitempty"`
}

// Message is an outgoing email.
type Message struct {
	Subject    string   `json:"subject"`
	Recipients []string `json:"recipients" validate:"required,min=1,dive,email"`
	CC         []string `json:"cc" validate:"omitempty,dive,email"`
	BCC        []string `json:"bcc" validate:"omitempty,dive,email"`
	ReplyTo    []string `json:"reply_to" validate:"omitempty,dive,email"`
	Body       string   `json:"body"`
	HTML       string   `json:"html"`
	Subtype    string   `json:"subtype" validate:"omitempty,oneof=plain html"`

	// TemplateBody is exposed to templates as .Body; TemplateParams, when
	// set, becomes the template's dot instead.
	TemplateBody   interface{}            `json:"template_body"`
	TemplateParams map[string]interface{} `json:"template_params"`

	Attachments []Attachment      `json:"attachments"`
	Headers     map[string]string `json:"headers"`

	// Rendered holds the template output after a templated send.
	Rendered string `json:"-"`
}

// HasTemplateData reports whether the message carries template input.
func (m *Message) HasTemplateData() bool {
	return m.TemplateBody != nil || len(m.TemplateParams) > 0
}
