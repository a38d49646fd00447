package sqlite

import (
	"context"
	"fmt"

	"github.com/jwebster45206/isekai-engine/pkg/story"
)

// SceneMigrationReport counts chapters handled by MigrateChaptersToScenes.
type SceneMigrationReport struct {
	Migrated int `json:"migrated"`
	Skipped  int `json:"skipped"`
}

// MigrateChaptersToScenes wraps every chapter that has no scene in a single
// chapter-end scene. Chapters that already have scenes are skipped, so the
// migration is idempotent.
func (s *Store) MigrateChaptersToScenes(ctx context.Context) (SceneMigrationReport, error) {
	var report SceneMigrationReport

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT c.data, (SELECT COUNT(*) FROM scenes sc WHERE sc.chapter_id = c.id)
FROM chapters c ORDER BY c.story_id, c.chapter_number`)
	if err != nil {
		return report, fmt.Errorf("scan chapters: %w", err)
	}
	type pending struct {
		data   string
		scenes int
	}
	var all []pending
	for rows.Next() {
		var p pending
		if err := rows.Scan(&p.data, &p.scenes); err != nil {
			_ = rows.Close()
			return report, err
		}
		all = append(all, p)
	}
	_ = rows.Close()
	if err := rows.Err(); err != nil {
		return report, err
	}

	for _, p := range all {
		if p.scenes > 0 {
			report.Skipped++
			continue
		}
		var c story.Chapter
		if err := decodeInto(p.data, &c); err != nil {
			return report, err
		}
		if err := s.wrapChapter(ctx, &c); err != nil {
			return report, fmt.Errorf("migrate chapter %s: %w", c.ID, err)
		}
		report.Migrated++
	}
	s.logger.Info("Chapter to scene migration finished", "migrated", report.Migrated, "skipped", report.Skipped)
	return report, nil
}

func (s *Store) wrapChapter(ctx context.Context, c *story.Chapter) error {
	sc := story.WrapChapter(c, story.SceneExploration, 5, "")
	if c.ChosenChoice != nil {
		sc.ChosenChoiceID = c.ChosenChoice.ID
	}
	c.TotalScenes = 1
	chapterData, err := encode(c)
	if err != nil {
		return err
	}
	sceneData, err := encode(sc)
	if err != nil {
		return err
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `
INSERT INTO scenes (id, chapter_id, scene_number, data, created_at) VALUES (?, ?, ?, ?, ?)`,
		sc.ID.String(), c.ID.String(), sc.SceneNumber, sceneData, toMillis(sc.CreatedAt)); err != nil {
		_ = tx.Rollback()
		return err
	}
	if _, err := tx.ExecContext(ctx, `UPDATE chapters SET data = ? WHERE id = ?`, chapterData, c.ID.String()); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}
