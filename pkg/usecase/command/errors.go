package command

import "github.com/m-mizutani/goerr/v2"

var (
	// ErrTransport means the completion service could not be reached or failed
	ErrTransport = goerr.New("completion request failed")
	// ErrDecode means the model reply is not a plan
	ErrDecode = goerr.New("model reply is not a valid plan")
	// ErrVerification means the voice verifier gave no usable score
	ErrVerification = goerr.New("voice verification failed")
	// ErrAuthorizationDenied means a privileged command was refused
	ErrAuthorizationDenied = goerr.New("authorization denied")
	// ErrExecution means the robot failed to run a command
	ErrExecution = goerr.New("command execution failed")
)

// Spoken notices
const (
	NoticeRequestFailed = "I couldn't process your request"
	NoticeDecodeFailed  = "I had trouble processing your request"
	NoticeChecking      = "Checking your voice"
	NoticeVerified      = "Master verified"
	NoticeDenied        = "You do not have permission to perform this action."
	NoticeDefaultAnswer = "I'll execute your request"
)

// NoticeFailed is spoken when the robot could not run tool
func NoticeFailed(tool string) string {
	return "Failed to execute " + tool
}
