package server

import (
	"time"
)

// Request payloads

type CreateReviewRequest struct {
	CaseNumber      string `json:"case_number"`
	Title           string `json:"title"`
	Description     string `json:"description,omitempty"`
	InitialTagLevel string `json:"initial_tag_level,omitempty" enum:"Bajo,Medio Bajo,Medio Alto,Alto"`
}

type TagRequest struct {
	Dimension string `json:"dimension" enum:"bienvenida,exploracion,guiaAsesoramiento,cierre,adhesionGeneral"`
	Level     string `json:"level" enum:"Bajo,Medio Bajo,Medio Alto,Alto"`
}

type RequeueRequest struct {
	Destination string `json:"destination" enum:"General,Prioridad,Supervisión,Gerencia"`
	Reason      string `json:"reason,omitempty"`
}

type StatusRequest struct {
	Status string `json:"status" enum:"Pendiente,En Proceso,Completado,Rechazado"`
	Reason string `json:"reason,omitempty"`
}

type CommentRequest struct {
	Text string `json:"text"`
}

type MarkCalibrationRequest struct {
	Type string `json:"type" enum:"Calibración Supervisores,Calibración Managers"`
}

type CreateCalibrationRequest struct {
	Type           string     `json:"type" enum:"Calibración Supervisores,Calibración Managers"`
	Title          string     `json:"title"`
	Description    string     `json:"description,omitempty"`
	ParticipantIDs []string   `json:"participant_ids,omitempty"`
	ScheduledAt    *time.Time `json:"scheduled_at,omitempty"`
	LinkedReviews  []string   `json:"linked_reviews,omitempty"`
}

type CalibrationStatusRequest struct {
	Status string `json:"status" enum:"Pendiente,En Revisión,Completado"`
}

type LinkReviewRequest struct {
	ReviewID string `json:"review_id"`
}
