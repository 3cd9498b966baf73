package helpers

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"

	"github.com/arcanastream/reading-orchestrator/internal/domain"
	"github.com/arcanastream/reading-orchestrator/internal/orchestration"
)

// SeedUser inserts a test user and returns its id. The password is
// bcrypt-hashed the same way the seed-user tool does it.
func SeedUser(t *testing.T, pool *pgxpool.Pool, email, password string) string {
	t.Helper()

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("Failed to hash password: %v", err)
	}

	userID := uuid.New().String()
	_, err = pool.Exec(context.Background(),
		`INSERT INTO users (id, name, email, hashed_password) VALUES ($1, $2, $3, $4)`,
		userID, "Test Querent", email, string(hashed),
	)
	if err != nil {
		t.Fatalf("Failed to seed user: %v", err)
	}
	return userID
}

// SampleReading builds a consistent completed three-card reading for a
// user. Card selection uses a fixed seed so the fixture is stable.
func SampleReading(t *testing.T, userID string) orchestration.ReadingRecord {
	t.Helper()

	rng := rand.New(rand.NewSource(11))
	deck := domain.Shuffle(domain.Deck(), rng)
	cards, err := domain.Draw(deck, domain.SpreadThreeCard, rng)
	if err != nil {
		t.Fatalf("Failed to draw fixture cards: %v", err)
	}

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	return orchestration.ReadingRecord{
		ID:       uuid.New().String(),
		UserID:   userID,
		Question: "Should I move to the coast?",
		Analysis: domain.QuestionAnalysis{
			QuestionDomain:    "personal_growth",
			Complexity:        "moderate",
			QuestionSummary:   "Relocation decision",
			RecommendedSpread: "three_card",
			Reasoning:         "A change question with a clear time axis",
		},
		SpreadType:     "three_card",
		Cards:          cards,
		Pattern:        domain.AnalyzePattern(cards, domain.SpreadThreeCard),
		Imagery:        "Three cards rest on a worn oak table.",
		Interpretation: "The past anchors you while the future card points outward.",
		Summary:        "The past anchors you while the future card points outward.",
		SourcePage:     "integration-test",
		TotalTimeMS:    4200,
		CreatedAt:      now,
		CompletedAt:    now.Add(42 * time.Second),
	}
}
