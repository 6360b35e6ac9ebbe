package validation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Constantes de validation
const (
	MinAddressLength       = 10
	MaxAddressLength       = 500
	MinRating              = 1
	MaxRating              = 5
	LowRatingThreshold     = 2
	MinTrackingLength      = 8
	MaxTrackingLength      = 40
	MinDisputeReasonLength = 3
	MaxDisputeReasonLength = 100
	MaxDisputeDescription  = 2000
	MaxCommentLength       = 1000
	MaxPhotosPerSubmission = 10
)

var trackingRegex = regexp.MustCompile(`^[A-Za-z0-9\-]+$`)

// ValidateLength vérifie la longueur d'une chaîne.
func ValidateLength(fieldName, value string, min, max int) error {
	length := utf8.RuneCountInString(value)
	if min > 0 && length < min {
		return fmt.Errorf("%s doit faire au moins %d caractères", fieldName, min)
	}
	if max > 0 && length > max {
		return fmt.Errorf("%s doit faire au plus %d caractères", fieldName, max)
	}
	return nil
}

// ValidateNonEmpty vérifie que la chaîne n'est pas vide.
func ValidateNonEmpty(fieldName, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%s ne peut pas être vide", fieldName)
	}
	return nil
}

// ValidateAddress vérifie qu'une adresse postale est plausible avant
// chiffrement. On ne cherche pas à la normaliser, seulement à écarter
// les saisies manifestement inutilisables par un transporteur.
func ValidateAddress(address string) error {
	trimmed := strings.TrimSpace(address)
	if trimmed == "" {
		return fmt.Errorf("l'adresse est obligatoire")
	}
	if err := ValidateLength("l'adresse", trimmed, MinAddressLength, MaxAddressLength); err != nil {
		return err
	}

	hasDigit := false
	for _, r := range trimmed {
		if r >= '0' && r <= '9' {
			hasDigit = true
			break
		}
	}
	if !hasDigit {
		return fmt.Errorf("l'adresse doit contenir un numéro ou un code postal")
	}
	return nil
}

// ValidateRating vérifie la note de confirmation de réception.
func ValidateRating(rating int) error {
	if rating < MinRating || rating > MaxRating {
		return fmt.Errorf("la note doit être comprise entre %d et %d", MinRating, MaxRating)
	}
	return nil
}

// ValidateTrackingNumber vérifie un numéro de suivi transporteur.
func ValidateTrackingNumber(tracking string) error {
	trimmed := strings.TrimSpace(tracking)
	if trimmed == "" {
		return fmt.Errorf("le numéro de suivi est obligatoire")
	}
	if err := ValidateLength("le numéro de suivi", trimmed, MinTrackingLength, MaxTrackingLength); err != nil {
		return err
	}
	if !trackingRegex.MatchString(trimmed) {
		return fmt.Errorf("le numéro de suivi contient des caractères invalides")
	}
	return nil
}

// ValidateDisputeReason vérifie le motif d'un signalement.
func ValidateDisputeReason(reason string) error {
	if err := ValidateNonEmpty("le motif", reason); err != nil {
		return err
	}
	return ValidateLength("le motif", strings.TrimSpace(reason), MinDisputeReasonLength, MaxDisputeReasonLength)
}
