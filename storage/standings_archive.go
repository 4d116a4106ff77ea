package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/Dosada05/tournament-engine/models"
	"github.com/gosimple/slug"
)

const defaultArchivePrefix = "standings"

type archiveDocument struct {
	TournamentID int                  `json:"tournament_id"`
	Name         string               `json:"name"`
	Format       models.BracketFormat `json:"format"`
	ArchivedAt   time.Time            `json:"archived_at"`
	Standings    []models.Standing    `json:"standings"`
}

// StandingsArchiver uploads the final standings of a completed tournament as
// a JSON document.
type StandingsArchiver struct {
	uploader FileUploader
	prefix   string
	logger   *slog.Logger
	now      func() time.Time
}

func NewStandingsArchiver(uploader FileUploader, prefix string, logger *slog.Logger) *StandingsArchiver {
	if prefix == "" {
		prefix = defaultArchivePrefix
	}
	return &StandingsArchiver{uploader: uploader, prefix: prefix, logger: logger, now: time.Now}
}

// ArchiveKey is stable per tournament, so archiving twice overwrites.
func (a *StandingsArchiver) ArchiveKey(t *models.Tournament) string {
	name := slug.Make(t.Name)
	if name == "" {
		return fmt.Sprintf("%s/%d.json", a.prefix, t.ID)
	}
	return fmt.Sprintf("%s/%d-%s.json", a.prefix, t.ID, name)
}

func (a *StandingsArchiver) ArchiveStandings(ctx context.Context, t *models.Tournament, standings []models.Standing) (string, error) {
	doc := archiveDocument{
		TournamentID: t.ID,
		Name:         t.Name,
		Format:       t.Format,
		ArchivedAt:   a.now().UTC(),
		Standings:    standings,
	}
	body, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("failed to encode standings archive: %w", err)
	}

	key := a.ArchiveKey(t)
	res, err := a.uploader.Upload(ctx, key, "application/json", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	a.logger.InfoContext(ctx, "standings archived",
		slog.Int("tournament_id", t.ID),
		slog.String("key", res.Key),
		slog.Int("entries", len(standings)))
	return res.Location, nil
}
