package collab

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/protobuf/types/known/structpb"
)

// GRPCVectorDBAdapter implements VectorDBAdapter over a plain gRPC
// connection, for vector database backends that expose a generic
// protobuf-struct service rather than a REST API. It dials and
// health-checks the connection before any call is dispatched, so a dead
// backend fails fast instead of hanging on the first query.
type GRPCVectorDBAdapter struct {
	conn   *grpc.ClientConn
	health grpc_health_v1.HealthClient
}

// DialGRPCVectorDB opens an insecure gRPC connection to target (a vector DB
// sidecar listening on a private network; TLS is a deployment concern of
// the sidecar's ingress, not this client). It does not block for connection
// readiness; call HealthCheck before first use.
func DialGRPCVectorDB(target string) (*GRPCVectorDBAdapter, error) {
	conn, err := grpc.NewClient(target, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %v", ErrVectorDbUnavailable, target, err)
	}
	return &GRPCVectorDBAdapter{
		conn:   conn,
		health: grpc_health_v1.NewHealthClient(conn),
	}, nil
}

// HealthCheck confirms the vector DB service is serving before dispatching
// a batch of calls.
func (a *GRPCVectorDBAdapter) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	resp, err := a.health.Check(ctx, &grpc_health_v1.HealthCheckRequest{})
	if err != nil {
		return fmt.Errorf("%w: health check: %v", ErrVectorDbUnavailable, err)
	}
	if resp.Status != grpc_health_v1.HealthCheckResponse_SERVING {
		return fmt.Errorf("%w: status %s", ErrVectorDbUnavailable, resp.Status)
	}
	return nil
}

// Close releases the underlying gRPC connection.
func (a *GRPCVectorDBAdapter) Close() error { return a.conn.Close() }

// Add inserts a document's embedding via a generic protobuf-struct unary
// call, avoiding a dependency on backend-specific generated stubs.
func (a *GRPCVectorDBAdapter) Add(ctx context.Context, collection, id, doc string, embedding []float32) error {
	req, err := structpb.NewStruct(map[string]any{
		"collection": collection,
		"id":         id,
		"document":   doc,
		"embedding":  float32SliceToAny(embedding),
	})
	if err != nil {
		return fmt.Errorf("%w: encode request: %v", ErrVectorDbUnavailable, err)
	}
	out := new(structpb.Struct)
	if err := a.conn.Invoke(ctx, "/vectordb.v1.VectorDB/Add", req, out); err != nil {
		return fmt.Errorf("%w: %v", ErrVectorDbUnavailable, err)
	}
	return nil
}

// QueryNearest performs a nearest-neighbor search via a generic unary call.
func (a *GRPCVectorDBAdapter) QueryNearest(ctx context.Context, collection string, embedding []float32, topK int) ([]NearestMatch, error) {
	req, err := structpb.NewStruct(map[string]any{
		"collection": collection,
		"embedding":  float32SliceToAny(embedding),
		"top_k":      topK,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: encode request: %v", ErrVectorDbUnavailable, err)
	}
	out := new(structpb.Struct)
	if err := a.conn.Invoke(ctx, "/vectordb.v1.VectorDB/QueryNearest", req, out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrVectorDbUnavailable, err)
	}

	matchesVal, ok := out.Fields["matches"]
	if !ok {
		return nil, nil
	}
	list := matchesVal.GetListValue()
	if list == nil {
		return nil, nil
	}
	results := make([]NearestMatch, 0, len(list.Values))
	for _, v := range list.Values {
		s := v.GetStructValue()
		if s == nil {
			continue
		}
		results = append(results, NearestMatch{
			ID:       s.Fields["id"].GetStringValue(),
			Distance: s.Fields["distance"].GetNumberValue(),
		})
	}
	return results, nil
}

// DeleteCollection removes a named collection via a generic unary call.
func (a *GRPCVectorDBAdapter) DeleteCollection(ctx context.Context, name string) error {
	req, err := structpb.NewStruct(map[string]any{"collection": name})
	if err != nil {
		return fmt.Errorf("%w: encode request: %v", ErrVectorDbUnavailable, err)
	}
	out := new(structpb.Struct)
	if err := a.conn.Invoke(ctx, "/vectordb.v1.VectorDB/DeleteCollection", req, out); err != nil {
		return fmt.Errorf("%w: %v", ErrVectorDbUnavailable, err)
	}
	return nil
}

func float32SliceToAny(v []float32) []any {
	out := make([]any, len(v))
	for i, f := range v {
		out[i] = float64(f)
	}
	return out
}
