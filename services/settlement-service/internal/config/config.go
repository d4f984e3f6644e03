// services/settlement-service/internal/config/config.go
package config

import (
	"fmt"
	"math/big"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Tanmoy095/LogiSynapse/services/settlement-service/internal/app/txsigner"
	"github.com/Tanmoy095/LogiSynapse/services/settlement-service/internal/ports/chain"
	sharedconfig "github.com/Tanmoy095/LogiSynapse/shared/config"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"gopkg.in/yaml.v3"
)

type Config struct {
	HTTPListen string `yaml:"http_listen"`
	GRPCListen string `yaml:"grpc_listen"`

	Auth   AuthConfig   `yaml:"auth"`
	Chain  ChainConfig  `yaml:"chain"`
	Oracle OracleConfig `yaml:"oracle"`

	// Identities is the static caller identity -> chain address table.
	Identities map[string]string `yaml:"identities"`

	// Infrastructure shared with the other services; environment only.
	Common *sharedconfig.CommonConfig `yaml:"-"`
}

type AuthConfig struct {
	TrustedIssuer   string        `yaml:"trusted_issuer"`
	SessionDuration time.Duration `yaml:"session_duration"`
}

type ChainConfig struct {
	RPCEndpoints       []string      `yaml:"rpc_endpoints"`
	ChainID            int64         `yaml:"chain_id"`
	TxFormat           string        `yaml:"tx_format"`
	GasLimit           uint64        `yaml:"gas_limit"`
	GasPriceWei        string        `yaml:"gas_price_wei"`
	EscrowManager      string        `yaml:"escrow_manager"`
	EscrowDuration     time.Duration `yaml:"escrow_duration"`
	RevocationRegistry string        `yaml:"revocation_registry"`
	DerivationPath     []string      `yaml:"derivation_path"`
}

type OracleConfig struct {
	URL    string `yaml:"url"`
	APIKey string `yaml:"api_key"`
	// DevSeed enables the in-process signer. Development only.
	DevSeed string `yaml:"dev_seed"`
}

func defaults() Config {
	return Config{
		HTTPListen: ":8085",
		GRPCListen: ":50055",
		Auth:       AuthConfig{SessionDuration: 12 * time.Hour},
		Chain: ChainConfig{
			TxFormat:       string(txsigner.FormatLegacy),
			GasLimit:       500000,
			GasPriceWei:    "20000000000",
			EscrowDuration: 90 * 24 * time.Hour,
			DerivationPath: []string{"logisynapse-settlement"},
		},
	}
}

// Load reads the optional YAML file at path, then applies SETTLEMENT_* environment overrides.
func Load(path string) (*Config, error) {
	c := defaults()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config load: %w", err)
		}
		if err := yaml.Unmarshal(data, &c); err != nil {
			return nil, fmt.Errorf("config unmarshal: %w", err)
		}
	}
	if err := applyEnvOverrides(&c); err != nil {
		return nil, err
	}
	c.Common = sharedconfig.LoadCommonConfig()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// applyEnvOverrides lets SETTLEMENT_ variables win over the file.
func applyEnvOverrides(c *Config) error {
	str := map[string]*string{
		"SETTLEMENT_HTTP_LISTEN":         &c.HTTPListen,
		"SETTLEMENT_GRPC_LISTEN":         &c.GRPCListen,
		"SETTLEMENT_TRUSTED_ISSUER":      &c.Auth.TrustedIssuer,
		"SETTLEMENT_TX_FORMAT":           &c.Chain.TxFormat,
		"SETTLEMENT_GAS_PRICE_WEI":       &c.Chain.GasPriceWei,
		"SETTLEMENT_ESCROW_MANAGER":      &c.Chain.EscrowManager,
		"SETTLEMENT_REVOCATION_REGISTRY": &c.Chain.RevocationRegistry,
		"SETTLEMENT_ORACLE_URL":          &c.Oracle.URL,
		"SETTLEMENT_ORACLE_API_KEY":      &c.Oracle.APIKey,
		"SETTLEMENT_ORACLE_DEV_SEED":     &c.Oracle.DevSeed,
	}
	for key, dst := range str {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	if v := os.Getenv("SETTLEMENT_RPC_ENDPOINTS"); v != "" {
		c.Chain.RPCEndpoints = splitList(v)
	}
	if v := os.Getenv("SETTLEMENT_DERIVATION_PATH"); v != "" {
		c.Chain.DerivationPath = splitList(v)
	}
	if v := os.Getenv("SETTLEMENT_CHAIN_ID"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("SETTLEMENT_CHAIN_ID: %w", err)
		}
		c.Chain.ChainID = n
	}
	if v := os.Getenv("SETTLEMENT_GAS_LIMIT"); v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return fmt.Errorf("SETTLEMENT_GAS_LIMIT: %w", err)
		}
		c.Chain.GasLimit = n
	}
	durations := map[string]*time.Duration{
		"SETTLEMENT_SESSION_DURATION": &c.Auth.SessionDuration,
		"SETTLEMENT_ESCROW_DURATION":  &c.Chain.EscrowDuration,
	}
	for key, dst := range durations {
		if v := os.Getenv(key); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			*dst = d
		}
	}
	// SETTLEMENT_IDENTITIES=alice=0xabc...,bob=0xdef...
	if v := os.Getenv("SETTLEMENT_IDENTITIES"); v != "" {
		if c.Identities == nil {
			c.Identities = make(map[string]string)
		}
		for _, pair := range splitList(v) {
			k, addr, ok := strings.Cut(pair, "=")
			if !ok {
				return fmt.Errorf("SETTLEMENT_IDENTITIES: malformed entry %q", pair)
			}
			c.Identities[strings.TrimSpace(k)] = strings.TrimSpace(addr)
		}
	}
	return nil
}

// Validate checks what the service cannot start without.
func (c *Config) Validate() error {
	var problems []string
	if !common.IsHexAddress(c.Auth.TrustedIssuer) {
		problems = append(problems, "auth.trusted_issuer must be an address")
	}
	if !common.IsHexAddress(c.Chain.EscrowManager) {
		problems = append(problems, "chain.escrow_manager must be an address")
	}
	if c.Chain.RevocationRegistry != "" && !common.IsHexAddress(c.Chain.RevocationRegistry) {
		problems = append(problems, "chain.revocation_registry must be an address")
	}
	if len(c.Chain.RPCEndpoints) == 0 {
		problems = append(problems, "chain.rpc_endpoints is empty")
	}
	if c.Chain.ChainID <= 0 {
		problems = append(problems, "chain.chain_id must be positive")
	}
	switch txsigner.TxFormat(c.Chain.TxFormat) {
	case txsigner.FormatLegacy, txsigner.FormatEIP1559:
	default:
		problems = append(problems, fmt.Sprintf("chain.tx_format %q is neither legacy nor eip1559", c.Chain.TxFormat))
	}
	if _, err := c.GasPrice(); err != nil {
		problems = append(problems, err.Error())
	}
	if c.Oracle.URL == "" && c.Oracle.DevSeed == "" {
		problems = append(problems, "either oracle.url or oracle.dev_seed is required")
	}
	if c.Auth.SessionDuration <= 0 {
		problems = append(problems, "auth.session_duration must be positive")
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

func (c *Config) GasPrice() (*big.Int, error) {
	p, ok := new(big.Int).SetString(c.Chain.GasPriceWei, 10)
	if !ok || p.Sign() < 0 {
		return nil, fmt.Errorf("chain.gas_price_wei %q is not a wei amount", c.Chain.GasPriceWei)
	}
	return p, nil
}

// Path decodes the derivation path; 0x-prefixed segments are hex, others are taken literally.
func (c *Config) Path() (chain.DerivationPath, error) {
	path := make(chain.DerivationPath, 0, len(c.Chain.DerivationPath))
	for _, seg := range c.Chain.DerivationPath {
		if strings.HasPrefix(seg, "0x") {
			b, err := hexutil.Decode(seg)
			if err != nil {
				return nil, fmt.Errorf("derivation path segment %q: %w", seg, err)
			}
			path = append(path, b)
			continue
		}
		path = append(path, []byte(seg))
	}
	return path, nil
}

// TxSignerConfig assembles the transaction pipeline settings.
func (c *Config) TxSignerConfig() (txsigner.Config, error) {
	gasPrice, err := c.GasPrice()
	if err != nil {
		return txsigner.Config{}, err
	}
	path, err := c.Path()
	if err != nil {
		return txsigner.Config{}, err
	}
	return txsigner.Config{
		ChainID:        big.NewInt(c.Chain.ChainID),
		Format:         txsigner.TxFormat(c.Chain.TxFormat),
		GasLimit:       c.Chain.GasLimit,
		GasPrice:       gasPrice,
		DerivationPath: path,
	}, nil
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
