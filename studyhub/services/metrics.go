package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	quizGenerationMetric      = promauto.NewSummary(prometheus.SummaryOpts{Name: "studyhub_quiz_generation", Help: "Quiz generation requests"})
	flashcardGenerationMetric = promauto.NewSummary(prometheus.SummaryOpts{Name: "studyhub_flashcard_generation", Help: "Flashcard generation requests"})

	generationFailures = promauto.NewCounter(prometheus.CounterOpts{Name: "studyhub_generation_failures", Help: "Failed generation requests"})

	linkResolutionMetric = promauto.NewSummary(prometheus.SummaryOpts{Name: "studyhub_link_resolution", Help: "Shared link resolutions"})
	linkDeniedCounter    = promauto.NewCounter(prometheus.CounterOpts{Name: "studyhub_link_denied", Help: "Shared link resolutions denied"})
)
