package ledger

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/herbtrace/backend/internal/infrastructure/config"
	"github.com/hyperledger/fabric-gateway/pkg/identity"
)

// ErrNoIdentity is returned when neither a wallet entry nor explicit credentials are configured
var ErrNoIdentity = errors.New("no ledger identity configured")

// Identity is the enrolment certificate and private key used to sign proposals
type Identity struct {
	MSPID   string
	CertPEM []byte
	KeyPEM  []byte
}

// walletEntry is the on-disk format of a file system wallet entry (<label>.id)
type walletEntry struct {
	Credentials struct {
		Certificate string `json:"certificate"`
		PrivateKey  string `json:"privateKey"`
	} `json:"credentials"`
	MSPID   string `json:"mspId"`
	Type    string `json:"type"`
	Version int    `json:"version"`
}

// LoadWalletIdentity reads <dir>/<label>.id
func LoadWalletIdentity(dir, label string) (*Identity, error) {
	if label == "" {
		return nil, fmt.Errorf("%w: identity label is empty", ErrNoIdentity)
	}
	path := filepath.Join(dir, label+".id")
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: wallet entry %s not found", ErrNoIdentity, path)
		}
		return nil, fmt.Errorf("read wallet entry %s: %w", path, err)
	}

	var entry walletEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return nil, fmt.Errorf("decode wallet entry %s: %w", path, err)
	}
	if entry.Type != "" && entry.Type != "X.509" {
		return nil, fmt.Errorf("wallet entry %s has unsupported type %q", path, entry.Type)
	}
	if entry.Credentials.Certificate == "" || entry.Credentials.PrivateKey == "" {
		return nil, fmt.Errorf("%w: wallet entry %s has no credentials", ErrNoIdentity, path)
	}

	return &Identity{
		MSPID:   entry.MSPID,
		CertPEM: []byte(entry.Credentials.Certificate),
		KeyPEM:  []byte(entry.Credentials.PrivateKey),
	}, nil
}

// LoadIdentity resolves the identity from the wallet when one is configured,
// otherwise from the explicit certificate and key paths.
// The configured MSP id overrides the one stored in the wallet.
func LoadIdentity(cfg config.LedgerConfig) (*Identity, error) {
	var (
		id  *Identity
		err error
	)
	switch {
	case cfg.WalletPath != "":
		id, err = LoadWalletIdentity(cfg.WalletPath, cfg.IdentityLabel)
	case cfg.CertPath != "" && cfg.KeyPath != "":
		id, err = loadPEMFiles(cfg.CertPath, cfg.KeyPath)
	default:
		return nil, ErrNoIdentity
	}
	if err != nil {
		return nil, err
	}

	if cfg.MSPID != "" {
		id.MSPID = cfg.MSPID
	}
	if id.MSPID == "" {
		return nil, fmt.Errorf("%w: msp id is empty", ErrNoIdentity)
	}
	return id, nil
}

func loadPEMFiles(certPath, keyPath string) (*Identity, error) {
	cert, err := os.ReadFile(certPath)
	if err != nil {
		return nil, fmt.Errorf("read certificate: %w", err)
	}
	key, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, fmt.Errorf("read private key: %w", err)
	}
	return &Identity{CertPEM: cert, KeyPEM: key}, nil
}

// Signer builds the gateway identity and signing function
func (id *Identity) Signer() (*identity.X509Identity, identity.Sign, error) {
	cert, err := identity.CertificateFromPEM(id.CertPEM)
	if err != nil {
		return nil, nil, fmt.Errorf("parse certificate: %w", err)
	}
	x509ID, err := identity.NewX509Identity(id.MSPID, cert)
	if err != nil {
		return nil, nil, fmt.Errorf("create x509 identity: %w", err)
	}

	key, err := identity.PrivateKeyFromPEM(id.KeyPEM)
	if err != nil {
		return nil, nil, fmt.Errorf("parse private key: %w", err)
	}
	sign, err := identity.NewPrivateKeySign(key)
	if err != nil {
		return nil, nil, fmt.Errorf("create signer: %w", err)
	}
	return x509ID, sign, nil
}
