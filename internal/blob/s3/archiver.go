package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/snipebot/internal/domain"
)

// archiveDelay is how long past UTC midnight the daily run fires, leaving
// room for closes that straddle the boundary to land in their journal day.
const archiveDelay = 5 * time.Minute

// JournalArchiver copies each completed UTC day of the trade journal into
// object storage as a JSONL file. The journal in Redis stays the live copy;
// the archive is the cold, append-only record.
type JournalArchiver struct {
	writer  *Writer
	journal domain.JournalReader
	logger  *slog.Logger
}

// NewJournalArchiver creates an archiver reading from journal and writing
// through writer.
func NewJournalArchiver(writer *Writer, journal domain.JournalReader, logger *slog.Logger) *JournalArchiver {
	return &JournalArchiver{
		writer:  writer,
		journal: journal,
		logger:  logger.With(slog.String("component", "journal_archiver")),
	}
}

// Run archives the previous UTC day shortly after every midnight until ctx is
// cancelled. It also archives yesterday immediately on startup in case the
// process was down over the boundary.
func (a *JournalArchiver) Run(ctx context.Context) error {
	a.archiveYesterday(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(untilNextRun(time.Now())):
			a.archiveYesterday(ctx)
		}
	}
}

func (a *JournalArchiver) archiveYesterday(ctx context.Context) {
	day := domain.JournalDay(time.Now().UTC().AddDate(0, 0, -1))
	n, err := a.ArchiveDay(ctx, day)
	if err != nil {
		a.logger.Error("journal archive failed",
			slog.String("day", day),
			slog.String("error", err.Error()),
		)
		return
	}
	if n > 0 {
		a.logger.Info("journal day archived",
			slog.String("day", day),
			slog.Int("trades", n),
		)
	}
}

// ArchiveDay uploads the given journal day ("2006-01-02", UTC) as JSONL and
// returns the number of trades written. Already-archived and empty days are
// skipped with a zero count.
func (a *JournalArchiver) ArchiveDay(ctx context.Context, day string) (int, error) {
	path := archivePath(day)

	exists, err := a.writer.Exists(ctx, path)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive %s: %w", day, err)
	}
	if exists {
		return 0, nil
	}

	trades, err := a.journal.ListDay(ctx, day)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive %s: read journal: %w", day, err)
	}
	if len(trades) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(trades)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive %s: %w", day, err)
	}
	if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
		return 0, fmt.Errorf("s3blob: archive %s: %w", day, err)
	}

	return len(trades), nil
}

// archivePath builds the S3 key for a journal day file, e.g.
// journal/2025-01-31.jsonl.
func archivePath(day string) string {
	return fmt.Sprintf("journal/%s.jsonl", day)
}

// untilNextRun returns the wait until the next post-midnight archive run.
func untilNextRun(now time.Time) time.Duration {
	now = now.UTC()
	next := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).
		AddDate(0, 0, 1).
		Add(archiveDelay)
	return next.Sub(now)
}

// marshalJSONL serialises trades as newline-delimited JSON, one compact line
// per trade.
func marshalJSONL(trades []domain.ClosedTrade) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for i, t := range trades {
		if err := enc.Encode(t); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}
