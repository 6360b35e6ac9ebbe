package dto

// ErrorResponse est la forme standard d'une erreur API.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// SuccessResponse est la forme standard d'une réponse de succès.
type SuccessResponse struct {
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// ResolutionResponse est la réponse du webhook transporteur : la seule
// surface où l'adresse réelle circule en clair.
type ResolutionResponse struct {
	Code        string `json:"code"`
	Destination string `json:"destination"`
}

// TrustProfileResponse expose le profil de confiance d'un utilisateur.
type TrustProfileResponse struct {
	UserID           string `json:"user_id"`
	TrustScore       int    `json:"trust_score"`
	SuccessfulTrades int    `json:"successful_trades"`
	FailedTrades     int    `json:"failed_trades"`
	DisputedTrades   int    `json:"disputed_trades"`
}
