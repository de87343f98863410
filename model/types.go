package model

// RegisterRequest is the body of POST /users/register.
type RegisterRequest struct {
	Name    string `json:"name"`
	DID     string `json:"did"`
	Message string `json:"message"`
	Sign    string `json:"sign"`
}

// LoginRequest is the body of POST /users/login.
type LoginRequest struct {
	DID     string `json:"did"`
	Message string `json:"message"`
	Sign    string `json:"sign"`
}

type User struct {
	DID  string `json:"did"`
	Name string `json:"name"`
}

// LoginResponse is the 200 body of POST /users/login.
type LoginResponse struct {
	User User `json:"user"`
}

// SignedMessage is what `didauth sign` prints and what clients send as the
// message/sign pair of a request.
type SignedMessage struct {
	Message string `json:"message"`
	Sign    string `json:"sign"`
}

// VerifyResult is what `didauth verify --json` prints.
type VerifyResult struct {
	Valid bool        `json:"valid"`
	Error *CodedError `json:"error,omitempty"`
}
