package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/pmukeshreddy/rlm-engine/internal/models"
	"github.com/pmukeshreddy/rlm-engine/internal/storage"
)

// ExecutionRepo is the storage.ExecutionRepository backed by Postgres.
type ExecutionRepo struct {
	client *Client
}

// NewExecutionRepo builds an ExecutionRepo over an already-migrated Client.
func NewExecutionRepo(c *Client) *ExecutionRepo {
	return &ExecutionRepo{client: c}
}

func (r *ExecutionRepo) SaveExecution(ctx context.Context, exec *models.Execution) error {
	_, err := r.client.Pool.Exec(ctx, `
		INSERT INTO executions (
			id, session_id, query, context_size, status, started_at, completed_at,
			total_input_tokens, total_output_tokens, total_cost_usd,
			final_result, error_message, error_kind
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			completed_at = EXCLUDED.completed_at,
			total_input_tokens = EXCLUDED.total_input_tokens,
			total_output_tokens = EXCLUDED.total_output_tokens,
			total_cost_usd = EXCLUDED.total_cost_usd,
			final_result = EXCLUDED.final_result,
			error_message = EXCLUDED.error_message,
			error_kind = EXCLUDED.error_kind
	`,
		exec.ID, nullableString(exec.SessionID), exec.Query, exec.ContextSize, string(exec.Status),
		exec.StartedAt, nullableTime(exec.CompletedAt),
		exec.TotalInputTokens, exec.TotalOutputTokens, exec.TotalCostUSD,
		exec.FinalResult, exec.ErrorMessage, exec.ErrorKind,
	)
	if err != nil {
		return fmt.Errorf("save execution: %w", err)
	}
	return nil
}

func (r *ExecutionRepo) GetExecution(ctx context.Context, id string) (*models.Execution, error) {
	row := r.client.Pool.QueryRow(ctx, `
		SELECT id, COALESCE(session_id,''), query, context_size, status, started_at, completed_at,
		       total_input_tokens, total_output_tokens, total_cost_usd,
		       final_result, error_message, error_kind
		FROM executions WHERE id = $1
	`, id)
	exec, err := scanExecution(row)
	if err == pgx.ErrNoRows {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get execution: %w", err)
	}
	return exec, nil
}

func (r *ExecutionRepo) ListExecutions(ctx context.Context, limit int) ([]*models.Execution, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.client.Pool.Query(ctx, `
		SELECT id, COALESCE(session_id,''), query, context_size, status, started_at, completed_at,
		       total_input_tokens, total_output_tokens, total_cost_usd,
		       final_result, error_message, error_kind
		FROM executions ORDER BY started_at DESC LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list executions: %w", err)
	}
	defer rows.Close()

	var out []*models.Execution
	for rows.Next() {
		exec, err := scanExecution(rows)
		if err != nil {
			return nil, fmt.Errorf("scan execution row: %w", err)
		}
		out = append(out, exec)
	}
	return out, rows.Err()
}

func (r *ExecutionRepo) SaveNodes(ctx context.Context, nodes []*models.ExecutionNode) error {
	if len(nodes) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, n := range nodes {
		memBefore, err := json.Marshal(models.CloneMemory(n.MemoryBefore))
		if err != nil {
			return fmt.Errorf("marshal memory_before for node %s: %w", n.ID, err)
		}
		memAfter, err := json.Marshal(models.CloneMemory(n.MemoryAfter))
		if err != nil {
			return fmt.Errorf("marshal memory_after for node %s: %w", n.ID, err)
		}
		batch.Queue(`
			INSERT INTO execution_nodes (
				id, execution_id, parent_node_id, node_type, depth, sequence_number,
				prompt, generated_source, status, started_at, completed_at,
				model, input_tokens, output_tokens, cost_usd,
				output, error_message, error_kind, memory_before, memory_after
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20)
			ON CONFLICT (id) DO UPDATE SET
				status = EXCLUDED.status,
				completed_at = EXCLUDED.completed_at,
				prompt = EXCLUDED.prompt,
				generated_source = EXCLUDED.generated_source,
				input_tokens = EXCLUDED.input_tokens,
				output_tokens = EXCLUDED.output_tokens,
				cost_usd = EXCLUDED.cost_usd,
				output = EXCLUDED.output,
				error_message = EXCLUDED.error_message,
				error_kind = EXCLUDED.error_kind,
				memory_after = EXCLUDED.memory_after
		`,
			n.ID, n.ExecutionID, nullableString(n.ParentNodeID), string(n.NodeType), n.Depth, n.SequenceNumber,
			n.Prompt, n.GeneratedSource, string(n.Status), n.StartedAt, nullableTime(n.CompletedAt),
			n.Model, n.InputTokens, n.OutputTokens, n.CostUSD,
			n.Output, n.ErrorMessage, n.ErrorKind, memBefore, memAfter,
		)
	}
	results := r.client.Pool.SendBatch(ctx, batch)
	defer results.Close()
	for range nodes {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("save node batch: %w", err)
		}
	}
	return nil
}

func (r *ExecutionRepo) NodesByExecution(ctx context.Context, executionID string) ([]*models.ExecutionNode, error) {
	rows, err := r.client.Pool.Query(ctx, `
		SELECT id, execution_id, COALESCE(parent_node_id,''), node_type, depth, sequence_number,
		       prompt, generated_source, status, started_at, completed_at,
		       model, input_tokens, output_tokens, cost_usd,
		       output, error_message, error_kind, memory_before, memory_after
		FROM execution_nodes WHERE execution_id = $1 ORDER BY depth, sequence_number
	`, executionID)
	if err != nil {
		return nil, fmt.Errorf("list nodes: %w", err)
	}
	defer rows.Close()

	var out []*models.ExecutionNode
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			return nil, fmt.Errorf("scan node row: %w", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanExecution(row rowScanner) (*models.Execution, error) {
	var exec models.Execution
	var status string
	var completedAt *time.Time
	if err := row.Scan(
		&exec.ID, &exec.SessionID, &exec.Query, &exec.ContextSize, &status,
		&exec.StartedAt, &completedAt,
		&exec.TotalInputTokens, &exec.TotalOutputTokens, &exec.TotalCostUSD,
		&exec.FinalResult, &exec.ErrorMessage, &exec.ErrorKind,
	); err != nil {
		return nil, err
	}
	exec.Status = models.ExecutionStatus(status)
	if completedAt != nil {
		exec.CompletedAt = *completedAt
	}
	return &exec, nil
}

func scanNode(row rowScanner) (*models.ExecutionNode, error) {
	var n models.ExecutionNode
	var nodeType, status string
	var completedAt *time.Time
	var memBefore, memAfter []byte
	if err := row.Scan(
		&n.ID, &n.ExecutionID, &n.ParentNodeID, &nodeType, &n.Depth, &n.SequenceNumber,
		&n.Prompt, &n.GeneratedSource, &status, &n.StartedAt, &completedAt,
		&n.Model, &n.InputTokens, &n.OutputTokens, &n.CostUSD,
		&n.Output, &n.ErrorMessage, &n.ErrorKind, &memBefore, &memAfter,
	); err != nil {
		return nil, err
	}
	n.NodeType = models.NodeType(nodeType)
	n.Status = models.NodeStatus(status)
	if completedAt != nil {
		n.CompletedAt = *completedAt
	}
	if err := json.Unmarshal(memBefore, &n.MemoryBefore); err != nil {
		return nil, fmt.Errorf("unmarshal memory_before: %w", err)
	}
	if err := json.Unmarshal(memAfter, &n.MemoryAfter); err != nil {
		return nil, fmt.Errorf("unmarshal memory_after: %w", err)
	}
	return &n, nil
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullableTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
