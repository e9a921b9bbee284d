package graph

import (
	"context"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	"github.com/Ramsey-B/banksia/pkg/models"
	"github.com/Ramsey-B/banksia/pkg/tracing"
)

// ProjectRun replaces the lineage projection with the latest run: source
// records contribute to golden records, and accepted match edges connect
// the sources that were judged the same patient.
func (c *Client) ProjectRun(ctx context.Context, report *models.ResolutionReport) error {
	ctx, span := tracing.StartSpan(ctx, "graph.Client.ProjectRun")
	defer span.End()

	_, err := c.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		// The projection is derived state; rebuild it wholesale each run.
		if _, err := tx.Run(ctx, "MATCH (n) WHERE n:SourceRecord OR n:GoldenRecord DETACH DELETE n", nil); err != nil {
			return nil, err
		}

		for _, golden := range report.GoldenRecords {
			if _, err := tx.Run(ctx,
				`MERGE (g:GoldenRecord {cluster_id: $cluster_id})
				 SET g.run_id = $run_id, g.confidence = $confidence, g.unresolved = $unresolved`,
				map[string]any{
					"cluster_id": golden.ClusterID,
					"run_id":     golden.RunID,
					"confidence": golden.Confidence,
					"unresolved": golden.Unresolved,
				}); err != nil {
				return nil, err
			}

			for _, recordID := range golden.SourceRecordIDs {
				if _, err := tx.Run(ctx,
					`MERGE (s:SourceRecord {record_id: $record_id})
					 WITH s
					 MATCH (g:GoldenRecord {cluster_id: $cluster_id})
					 MERGE (s)-[:CONTRIBUTES_TO]->(g)`,
					map[string]any{
						"record_id":  recordID,
						"cluster_id": golden.ClusterID,
					}); err != nil {
					return nil, err
				}
			}
		}

		for _, edge := range report.Edges {
			if !edge.IsMatch {
				continue
			}
			if _, err := tx.Run(ctx,
				`MATCH (a:SourceRecord {record_id: $id1}), (b:SourceRecord {record_id: $id2})
				 MERGE (a)-[m:MATCHED_WITH]->(b)
				 SET m.score = $score, m.confidence = $confidence`,
				map[string]any{
					"id1":        edge.ID1,
					"id2":        edge.ID2,
					"score":      edge.SimilarityScore,
					"confidence": string(edge.Confidence),
				}); err != nil {
				return nil, err
			}
		}

		return nil, nil
	})
	if err != nil {
		c.logger.Error("failed to project lineage",
			zap.String("run_id", report.RunID),
			zap.Error(err))
		return err
	}

	c.logger.Info("projected lineage graph",
		zap.String("run_id", report.RunID),
		zap.Int("golden_records", len(report.GoldenRecords)))
	return nil
}

// ClusterLineage returns the record ids contributing to one golden record,
// for stewardship exploration.
func (c *Client) ClusterLineage(ctx context.Context, clusterID string) ([]string, error) {
	ctx, span := tracing.StartSpan(ctx, "graph.Client.ClusterLineage")
	defer span.End()

	result, err := c.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx,
			`MATCH (s:SourceRecord)-[:CONTRIBUTES_TO]->(g:GoldenRecord {cluster_id: $cluster_id})
			 RETURN s.record_id AS record_id ORDER BY record_id`,
			map[string]any{"cluster_id": clusterID})
		if err != nil {
			return nil, err
		}

		var ids []string
		for res.Next(ctx) {
			if id, ok := res.Record().Get("record_id"); ok {
				if s, ok := id.(string); ok {
					ids = append(ids, s)
				}
			}
		}
		return ids, res.Err()
	})
	if err != nil {
		return nil, err
	}
	ids, _ := result.([]string)
	return ids, nil
}
