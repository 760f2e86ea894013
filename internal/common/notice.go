package common

// NoticeLevel categorizes a user-facing message.
type NoticeLevel string

const (
	NoticeSuccess NoticeLevel = "success"
	NoticeInfo    NoticeLevel = "info"
	NoticeWarning NoticeLevel = "warning"
	NoticeError   NoticeLevel = "error"
)

// Notice is a message rendered to the user after an action.
type Notice struct {
	Level    NoticeLevel `json:"level"`
	Message  string      `json:"message"`
	FileName string      `json:"file_name,omitempty"`
	Hint     string      `json:"hint,omitempty"`
	Raw      string      `json:"raw,omitempty"` // model reply excerpt for unparseable replies
}

func Success(msg string) Notice { return Notice{Level: NoticeSuccess, Message: msg} }
func Info(msg string) Notice    { return Notice{Level: NoticeInfo, Message: msg} }
func Warning(msg string) Notice { return Notice{Level: NoticeWarning, Message: msg} }
func Failure(msg string) Notice { return Notice{Level: NoticeError, Message: msg} }
