package bitso

import "encoding/json"

// envelope wraps every Bitso API response.
type envelope struct {
	Success bool            `json:"success"`
	Payload json.RawMessage `json:"payload"`
	Error   *apiError       `json:"error,omitempty"`
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type availableBook struct {
	Book string `json:"book"`
}

type orderBookPayload struct {
	Asks      []level `json:"asks"`
	Bids      []level `json:"bids"`
	UpdatedAt string  `json:"updated_at"`
	Sequence  string  `json:"sequence"`
}

type level struct {
	Book   string `json:"book"`
	Price  string `json:"price"`
	Amount string `json:"amount"`
}
