package executor

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/elys-network/yieldbalancer/internal/logger"
	"github.com/elys-network/yieldbalancer/internal/types"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/encoding"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

const (
	serviceName = "yieldbalancer.executor.v1.Executor"

	methodSubmit            = "/" + serviceName + "/Submit"
	methodHoldings          = "/" + serviceName + "/Holdings"
	methodEnsureSafetyProxy = "/" + serviceName + "/EnsureSafetyProxy"

	DefaultConnectAttempts   = 5
	DefaultConnectRetryDelay = 5 * time.Second
	defaultCallTimeout       = 30 * time.Second
)

// jsonCodec lets the executor speak gRPC without generated protobuf types.
type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }
func (jsonCodec) Name() string                       { return "json" }

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

type submitRequest struct {
	Instructions []types.Instruction `json:"instructions"`
}

type submitResponse struct {
	Receipts []types.Receipt `json:"receipts"`
}

type holdingsRequest struct{}

type holdingsResponse struct {
	Holdings      []types.Holding `json:"holdings"`
	TotalValueUSD float64         `json:"total_value_usd"`
}

type safetyProxyRequest struct{}

type safetyProxyResponse struct {
	Deployed bool `json:"deployed"`
}

// GRPCExecutor forwards instructions to a remote executor service.
type GRPCExecutor struct {
	conn        *grpc.ClientConn
	callTimeout time.Duration
	logger      zerolog.Logger
}

// DialGRPC connects to endpoint, using TLS for :443, and waits for the remote
// health check to report SERVING.
func DialGRPC(ctx context.Context, endpoint string) (*GRPCExecutor, error) {
	if endpoint == "" {
		return nil, errors.Join(ErrConnectionFailed, errors.New("gRPC endpoint is empty"))
	}

	var creds grpc.DialOption
	if strings.HasSuffix(endpoint, ":443") {
		creds = grpc.WithTransportCredentials(credentials.NewTLS(&tls.Config{MinVersion: tls.VersionTLS12}))
	} else {
		creds = grpc.WithTransportCredentials(insecure.NewCredentials())
	}

	conn, err := grpc.NewClient(endpoint, creds)
	if err != nil {
		return nil, errors.Join(ErrConnectionFailed, fmt.Errorf("failed to create client for %s: %w", endpoint, err))
	}

	exec, err := NewGRPCExecutor(ctx, conn, DefaultConnectAttempts, DefaultConnectRetryDelay)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return exec, nil
}

// NewGRPCExecutor wraps an existing connection, retrying the health check up to
// attempts times with a fixed delay.
func NewGRPCExecutor(ctx context.Context, conn *grpc.ClientConn, attempts int, delay time.Duration) (*GRPCExecutor, error) {
	if conn == nil {
		return nil, errors.Join(ErrConnectionFailed, errors.New("gRPC connection is nil"))
	}
	if attempts < 1 {
		attempts = 1
	}

	e := &GRPCExecutor{
		conn:        conn,
		callTimeout: defaultCallTimeout,
		logger:      logger.GetForComponent("grpc_executor"),
	}

	health := healthpb.NewHealthClient(conn)
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		resp, err := health.Check(ctx, &healthpb.HealthCheckRequest{})
		if err == nil && resp.GetStatus() == healthpb.HealthCheckResponse_SERVING {
			e.logger.Info().Str("target", conn.Target()).Int("attempt", attempt).Msg("Executor connection established")
			return e, nil
		}
		if err == nil {
			err = fmt.Errorf("executor status %s", resp.GetStatus())
		}
		lastErr = err
		e.logger.Warn().Err(err).Int("attempt", attempt).Int("max_attempts", attempts).Msg("Executor not ready")

		if attempt == attempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, errors.Join(ErrConnectionFailed, ctx.Err())
		case <-time.After(delay):
		}
	}
	return nil, errors.Join(ErrConnectionFailed, lastErr)
}

func (e *GRPCExecutor) invoke(ctx context.Context, method string, req, resp any) error {
	ctx, cancel := context.WithTimeout(ctx, e.callTimeout)
	defer cancel()
	return e.conn.Invoke(ctx, method, req, resp, grpc.CallContentSubtype(jsonCodec{}.Name()))
}

func (e *GRPCExecutor) Submit(ctx context.Context, instructions []types.Instruction) ([]types.Receipt, error) {
	if len(instructions) == 0 {
		return nil, ErrNoInstructions
	}

	e.logger.Info().Int("instructions", len(instructions)).Msg("Submitting instructions to executor")

	var resp submitResponse
	if err := e.invoke(ctx, methodSubmit, &submitRequest{Instructions: instructions}, &resp); err != nil {
		e.logger.Error().Err(err).Msg("Submit failed")
		return nil, fmt.Errorf("executor submit failed: %w", err)
	}
	if len(resp.Receipts) != len(instructions) {
		e.logger.Warn().
			Int("instructions", len(instructions)).
			Int("receipts", len(resp.Receipts)).
			Msg("Executor returned an unexpected number of receipts")
	}
	return resp.Receipts, nil
}

func (e *GRPCExecutor) holdings(ctx context.Context) (holdingsResponse, error) {
	var resp holdingsResponse
	if err := e.invoke(ctx, methodHoldings, &holdingsRequest{}, &resp); err != nil {
		return holdingsResponse{}, fmt.Errorf("executor holdings query failed: %w", err)
	}
	return resp, nil
}

func (e *GRPCExecutor) Holdings(ctx context.Context) ([]types.Holding, error) {
	resp, err := e.holdings(ctx)
	if err != nil {
		return nil, err
	}
	return resp.Holdings, nil
}

func (e *GRPCExecutor) TotalValue(ctx context.Context) (float64, error) {
	resp, err := e.holdings(ctx)
	if err != nil {
		return 0, err
	}
	return resp.TotalValueUSD, nil
}

func (e *GRPCExecutor) EnsureProvisioned(ctx context.Context) (bool, error) {
	var resp safetyProxyResponse
	if err := e.invoke(ctx, methodEnsureSafetyProxy, &safetyProxyRequest{}, &resp); err != nil {
		return false, fmt.Errorf("safety proxy provisioning failed: %w", err)
	}
	if resp.Deployed {
		e.logger.Warn().Msg("Safety proxy deployed")
	}
	return resp.Deployed, nil
}

func (e *GRPCExecutor) Close() error {
	return e.conn.Close()
}
