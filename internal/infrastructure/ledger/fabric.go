package ledger

import (
	"context"
	"crypto/x509"
	"errors"
	"fmt"
	"os"

	domain "github.com/herbtrace/backend/internal/domain/ledger"
	"github.com/herbtrace/backend/internal/infrastructure/config"
	"github.com/hyperledger/fabric-gateway/pkg/client"
	"github.com/hyperledger/fabric-gateway/pkg/hash"
	"google.golang.org/grpc"
	"google.golang.org/grpc/connectivity"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
)

// Session is an open connection to one chaincode on one channel
type Session interface {
	// Submit endorses, orders and waits for the commit of a transaction.
	// The returned result carries the transaction id even when err is not nil.
	Submit(ctx context.Context, function string, args ...string) (domain.SubmitResult, error)
	Evaluate(ctx context.Context, function string, args ...string) ([]byte, error)
	Close() error
}

// Connector opens sessions
type Connector interface {
	Connect(ctx context.Context) (Session, error)
}

// FabricConnector dials a Fabric peer gateway with a file based identity
type FabricConnector struct {
	cfg config.LedgerConfig
}

// NewFabricConnector creates a connector for cfg
func NewFabricConnector(cfg config.LedgerConfig) *FabricConnector {
	return &FabricConnector{cfg: cfg}
}

// Connect loads the identity, dials the peer and waits until the channel is ready or ctx expires
func (c *FabricConnector) Connect(ctx context.Context) (Session, error) {
	id, err := LoadIdentity(c.cfg)
	if err != nil {
		return nil, err
	}
	x509ID, sign, err := id.Signer()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNoIdentity, err)
	}

	creds, err := c.transportCredentials()
	if err != nil {
		return nil, err
	}
	conn, err := grpc.NewClient(c.cfg.PeerEndpoint, grpc.WithTransportCredentials(creds))
	if err != nil {
		return nil, fmt.Errorf("create grpc client: %w", err)
	}
	if err := waitReady(ctx, conn); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("peer %s not reachable: %w", c.cfg.PeerEndpoint, err)
	}

	gw, err := client.Connect(x509ID,
		client.WithSign(sign),
		client.WithHash(hash.SHA256),
		client.WithClientConnection(conn),
		client.WithEvaluateTimeout(c.cfg.EvaluateTimeout),
		client.WithEndorseTimeout(c.cfg.EndorseTimeout),
		client.WithSubmitTimeout(c.cfg.SubmitTimeout),
		client.WithCommitStatusTimeout(c.cfg.CommitStatusTimeout),
	)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("connect gateway: %w", err)
	}

	contract := gw.GetNetwork(c.cfg.Channel).GetContract(c.cfg.Chaincode)
	return &fabricSession{conn: conn, gateway: gw, contract: contract}, nil
}

func (c *FabricConnector) transportCredentials() (credentials.TransportCredentials, error) {
	if c.cfg.Insecure {
		return insecure.NewCredentials(), nil
	}
	pem, err := os.ReadFile(c.cfg.TLSCertPath)
	if err != nil {
		return nil, fmt.Errorf("read peer TLS certificate: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, errors.New("peer TLS certificate contains no PEM certificates")
	}
	return credentials.NewClientTLSFromCert(pool, c.cfg.PeerHostOverride), nil
}

// waitReady forces the lazy gRPC channel to connect so an unreachable peer fails Connect
func waitReady(ctx context.Context, conn *grpc.ClientConn) error {
	conn.Connect()
	for {
		state := conn.GetState()
		switch state {
		case connectivity.Ready:
			return nil
		case connectivity.Shutdown:
			return errors.New("connection shut down")
		}
		if !conn.WaitForStateChange(ctx, state) {
			return ctx.Err()
		}
	}
}

type fabricSession struct {
	conn     *grpc.ClientConn
	gateway  *client.Gateway
	contract *client.Contract
}

func (s *fabricSession) Submit(ctx context.Context, function string, args ...string) (domain.SubmitResult, error) {
	proposal, err := s.contract.NewProposal(function, client.WithArguments(args...))
	if err != nil {
		return domain.SubmitResult{}, fmt.Errorf("create proposal: %w", err)
	}
	result := domain.SubmitResult{TxID: proposal.TransactionID()}

	tx, err := proposal.EndorseWithContext(ctx)
	if err != nil {
		return result, err
	}
	result.Payload = tx.Result()

	commit, err := tx.SubmitWithContext(ctx)
	if err != nil {
		return result, err
	}
	st, err := commit.StatusWithContext(ctx)
	if err != nil {
		return result, err
	}
	if !st.Successful {
		return result, fmt.Errorf("%w: transaction %s status %v", errCommitFailed, st.TransactionID, st.Code)
	}
	return result, nil
}

func (s *fabricSession) Evaluate(ctx context.Context, function string, args ...string) ([]byte, error) {
	return s.contract.EvaluateWithContext(ctx, function, client.WithArguments(args...))
}

func (s *fabricSession) Close() error {
	return errors.Join(s.gateway.Close(), s.conn.Close())
}
