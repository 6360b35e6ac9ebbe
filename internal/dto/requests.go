package dto

import "github.com/google/uuid"

// ProposeTradeRequest est la charge de création d'un troc.
type ProposeTradeRequest struct {
	ReceiverID uuid.UUID `json:"receiver_id" binding:"required"`
	ItemA      uuid.UUID `json:"item_a" binding:"required"`
	ItemB      uuid.UUID `json:"item_b" binding:"required"`
}

// SubmitPhotosRequest porte les photos de preuve d'un participant.
type SubmitPhotosRequest struct {
	MediaIDs []uuid.UUID `json:"media_ids" binding:"required"`
}

// ConfirmShipmentRequest porte la confirmation d'envoi.
type ConfirmShipmentRequest struct {
	TrackingNumber *string `json:"tracking_number,omitempty"`
}

// ConfirmDeliveryRequest porte la confirmation de réception.
type ConfirmDeliveryRequest struct {
	Rating  int     `json:"rating" binding:"required"`
	Comment *string `json:"comment,omitempty"`
}

// ReportDisputeRequest porte un signalement de litige.
type ReportDisputeRequest struct {
	Reason      string      `json:"reason" binding:"required"`
	Description string      `json:"description"`
	Evidence    []uuid.UUID `json:"evidence,omitempty"`
}

// ResolveDisputeRequest porte la décision d'arbitrage d'un litige.
type ResolveDisputeRequest struct {
	Outcome     string     `json:"outcome" binding:"required"`
	FaultyParty *uuid.UUID `json:"faulty_party,omitempty"`
}
