package notestore

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hankxu/memoflow/internal/notefile"
	"github.com/hankxu/memoflow/internal/versionlog"
)

// MigratePrefix rewrites the location code of every note carrying the old
// prefix to use the new one, updating the hash index alongside. Each note is
// committed individually as a refactor, so a partial run leaves a usable
// trail. Returns the number of notes updated.
//
// This is the only schema-migration tool; the taxonomy definition itself
// must be updated by the user to match the new prefix.
func (s *Store) MigratePrefix(ctx context.Context, oldPrefix, newPrefix string) (int, error) {
	if oldPrefix == "" || newPrefix == "" {
		return 0, fmt.Errorf("notestore: both prefixes are required")
	}

	notes, err := s.Query(Filter{})
	if err != nil {
		return 0, err
	}

	updated := 0
	for _, n := range notes {
		if !strings.HasPrefix(n.Code, oldPrefix+"-") {
			continue
		}
		newCode := newPrefix + strings.TrimPrefix(n.Code, oldPrefix)

		if _, ok := s.index.Get(n.Hash); ok {
			if err := s.index.UpdatePath(n.Hash, n.Path, newCode); err != nil {
				s.logger.Error("migrate: index update failed",
					slog.String("hash", n.Hash), slog.String("error", err.Error()))
				continue
			}
		}

		n.Code = newCode
		data, err := notefile.Render(n)
		if err != nil {
			s.logger.Error("migrate: render failed",
				slog.String("hash", n.Hash), slog.String("error", err.Error()))
			continue
		}
		if err := s.fs.Write(n.Path, data); err != nil {
			s.logger.Error("migrate: write failed",
				slog.String("hash", n.Hash), slog.String("error", err.Error()))
			continue
		}

		s.commit(ctx, versionlog.TypeRefactor, n.Hash,
			fmt.Sprintf("update prefix from %s to %s", oldPrefix, newPrefix),
			s.withIndexFile([]string{n.Path}), nil)

		updated++
		s.logger.Info("migrated prefix",
			slog.String("hash", n.Hash), slog.String("code", newCode))
	}
	return updated, nil
}
