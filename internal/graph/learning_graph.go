package graph

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/ghprograms/programs-backend/internal/logger"
	"github.com/ghprograms/programs-backend/internal/neo4jdb"
	"github.com/ghprograms/programs-backend/internal/types"
)

// LearningGraph mirrors the catalog and completion facts into Neo4j.
// Every method is a no-op when the client is nil (graph disabled) and
// never returns an error to its caller; failures are logged only.
type LearningGraph struct {
	client *neo4jdb.Client
	log    *logger.Logger
}

func NewLearningGraph(client *neo4jdb.Client, log *logger.Logger) *LearningGraph {
	return &LearningGraph{client: client, log: log.With("component", "LearningGraph")}
}

func (g *LearningGraph) Enabled() bool {
	return g != nil && g.client != nil && g.client.Driver != nil
}

// ProjectProgram rebuilds the structural subgraph for one program:
// (Program)-[:HAS_PHASE]->(Phase)-[:HAS_LESSON]->(Lesson)-[:HAS_TACTIC]->(Tactic)
// plus NEXT edges between position-ordered lessons.
func (g *LearningGraph) ProjectProgram(ctx context.Context, program *types.Program, phases []*types.Phase, lessons []*types.Lesson, tactics []*types.Tactic) {
	if !g.Enabled() || program == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)

	phaseRows := make([]map[string]any, 0, len(phases))
	for _, p := range phases {
		if p == nil {
			continue
		}
		phaseRows = append(phaseRows, map[string]any{
			"id":         p.ID.String(),
			"program_id": p.ProgramID.String(),
			"position":   int64(p.Position),
			"title":      p.Title,
		})
	}
	lessonRows := make([]map[string]any, 0, len(lessons))
	for _, l := range lessons {
		if l == nil {
			continue
		}
		lessonRows = append(lessonRows, map[string]any{
			"id":       l.ID.String(),
			"phase_id": l.PhaseID.String(),
			"position": int64(l.Position),
			"title":    l.Title,
		})
	}
	tacticRows := make([]map[string]any, 0, len(tactics))
	for _, t := range tactics {
		if t == nil {
			continue
		}
		tacticRows = append(tacticRows, map[string]any{
			"id":        t.ID.String(),
			"lesson_id": t.LessonID.String(),
			"position":  int64(t.Position),
			"required":  t.Required,
		})
	}

	session := g.client.Driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeWrite,
		DatabaseName: g.client.Database,
	})
	defer session.Close(ctx)

	// Best-effort schema init.
	for _, stmt := range []string{
		`CREATE CONSTRAINT program_id_unique IF NOT EXISTS FOR (p:Program) REQUIRE p.id IS UNIQUE`,
		`CREATE CONSTRAINT lesson_id_unique IF NOT EXISTS FOR (l:Lesson) REQUIRE l.id IS UNIQUE`,
		`CREATE CONSTRAINT user_id_unique IF NOT EXISTS FOR (u:User) REQUIRE u.id IS UNIQUE`,
	} {
		if res, err := session.Run(ctx, stmt, nil); err != nil {
			g.log.Warn("Graph schema init failed (continuing)", "error", err)
		} else {
			_, _ = res.Consume(ctx)
		}
	}

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		if err := runConsume(ctx, tx, `
MERGE (p:Program {id: $id})
SET p.title = $title, p.slug = $slug, p.synced_at = $synced_at
`, map[string]any{
			"id":        program.ID.String(),
			"title":     program.Title,
			"slug":      program.Slug,
			"synced_at": now,
		}); err != nil {
			return nil, err
		}
		if err := runConsume(ctx, tx, `
UNWIND $rows AS r
MATCH (p:Program {id: r.program_id})
MERGE (ph:Phase {id: r.id})
SET ph.position = r.position, ph.title = r.title
MERGE (p)-[:HAS_PHASE]->(ph)
`, map[string]any{"rows": phaseRows}); err != nil {
			return nil, err
		}
		if err := runConsume(ctx, tx, `
UNWIND $rows AS r
MATCH (ph:Phase {id: r.phase_id})
MERGE (l:Lesson {id: r.id})
SET l.position = r.position, l.title = r.title
MERGE (ph)-[:HAS_LESSON]->(l)
`, map[string]any{"rows": lessonRows}); err != nil {
			return nil, err
		}
		if err := runConsume(ctx, tx, `
UNWIND $rows AS r
MATCH (l:Lesson {id: r.lesson_id})
MERGE (t:Tactic {id: r.id})
SET t.position = r.position, t.required = r.required
MERGE (l)-[:HAS_TACTIC]->(t)
`, map[string]any{"rows": tacticRows}); err != nil {
			return nil, err
		}
		// NEXT edges encode the program-wide lesson order.
		if err := runConsume(ctx, tx, `
MATCH (p:Program {id: $program_id})-[:HAS_PHASE]->(ph:Phase)-[:HAS_LESSON]->(l:Lesson)
WITH l ORDER BY ph.position, l.position
WITH collect(l) AS ordered
UNWIND range(0, size(ordered) - 2) AS i
WITH ordered[i] AS a, ordered[i + 1] AS b
MERGE (a)-[:NEXT]->(b)
`, map[string]any{"program_id": program.ID.String()}); err != nil {
			return nil, err
		}
		return nil, nil
	})
	if err != nil {
		g.log.Warn("Failed to project program graph", "programID", program.ID, "error", err)
	}
}

// ProjectLessonCompletion records a (User)-[:COMPLETED]->(Lesson) edge.
func (g *LearningGraph) ProjectLessonCompletion(ctx context.Context, userID uuid.UUID, lesson *types.Lesson) {
	if !g.Enabled() || userID == uuid.Nil || lesson == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)

	session := g.client.Driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeWrite,
		DatabaseName: g.client.Database,
	})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		return nil, runConsume(ctx, tx, `
MERGE (u:User {id: $user_id})
MERGE (l:Lesson {id: $lesson_id})
MERGE (u)-[c:COMPLETED]->(l)
ON CREATE SET c.completed_at = $completed_at
`, map[string]any{
			"user_id":      userID.String(),
			"lesson_id":    lesson.ID.String(),
			"completed_at": now,
		})
	})
	if err != nil {
		g.log.Warn("Failed to project lesson completion", "userID", userID, "lessonID", lesson.ID, "error", err)
	}
}

// RecommendNextLessons walks NEXT edges from the user's completed
// lessons and returns ids of not-yet-completed successors, program
// order preserved.
func (g *LearningGraph) RecommendNextLessons(ctx context.Context, userID, programID uuid.UUID, limit int) ([]uuid.UUID, error) {
	if !g.Enabled() {
		return nil, nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if limit <= 0 {
		limit = 3
	}

	session := g.client.Driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeRead,
		DatabaseName: g.client.Database,
	})
	defer session.Close(ctx)

	records, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
MATCH (p:Program {id: $program_id})-[:HAS_PHASE]->(ph:Phase)-[:HAS_LESSON]->(l:Lesson)
WHERE NOT EXISTS {
  MATCH (:User {id: $user_id})-[:COMPLETED]->(l)
}
RETURN l.id AS id
ORDER BY ph.position, l.position
LIMIT $limit
`, map[string]any{
			"program_id": programID.String(),
			"user_id":    userID.String(),
			"limit":      int64(limit),
		})
		if err != nil {
			return nil, err
		}
		return res.Collect(ctx)
	})
	if err != nil {
		return nil, err
	}

	rows, _ := records.([]*neo4j.Record)
	out := make([]uuid.UUID, 0, len(rows))
	for _, rec := range rows {
		raw, ok := rec.Get("id")
		if !ok {
			continue
		}
		s, ok := raw.(string)
		if !ok {
			continue
		}
		if id, pErr := uuid.Parse(s); pErr == nil {
			out = append(out, id)
		}
	}
	return out, nil
}

func runConsume(ctx context.Context, tx neo4j.ManagedTransaction, cypher string, params map[string]any) error {
	res, err := tx.Run(ctx, cypher, params)
	if err != nil {
		return err
	}
	_, err = res.Consume(ctx)
	return err
}
