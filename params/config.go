package params

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Venue struct {
	// SessionDuration is both the length of a trading session and the
	// mandatory cool-down before the next one may start.
	SessionDuration time.Duration
	// Instruments lists the currency pairs a session carries reference
	// rates for. Order matters: the instrument tag is the slice index.
	Instruments []string
	// OperatorKey is the hex-encoded secp256k1 private key of the venue
	// operator. Empty means generate an ephemeral key at startup (devnet).
	OperatorKey string
}

type Node struct {
	DBPath  string // Pebble venue store ("" disables persistence)
	WALPath string // operation journal ("" uses a no-op WAL)
	APIAddr string
	Listen  string // libp2p multiaddr for event gossip ("" disables p2p)
	// Bootstrap lists multiaddrs of peers to dial on startup.
	Bootstrap []string
	LogFile   string
}

type Config struct {
	Venue Venue
	Node  Node
}

func Default() Config {
	return Config{
		Venue: Venue{
			SessionDuration: time.Hour,
			Instruments:     []string{"EUR/USD", "GBP/USD", "USD/JPY", "USD/CHF", "AUD/USD"},
		},
		Node: Node{
			DBPath:  "data/venue.db",
			WALPath: "data/ops.wal",
			APIAddr: ":8080",
			LogFile: "data/node.log",
		},
	}
}

// LoadFromEnv loads configuration from a .env file (if present) and
// environment variables. Priority: ENV > .env file > defaults.
func LoadFromEnv(envPath string) Config {
	cfg := Default()

	if envPath != "" {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load()
	}

	if d := os.Getenv("SESSION_DURATION_MIN"); d != "" {
		if m, err := strconv.Atoi(d); err == nil && m > 0 {
			cfg.Venue.SessionDuration = time.Duration(m) * time.Minute
		}
	}
	if pairs := os.Getenv("INSTRUMENTS"); pairs != "" {
		// Example: "EUR/USD,GBP/USD,USD/JPY"
		var out []string
		for _, p := range strings.Split(pairs, ",") {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		if len(out) > 0 {
			cfg.Venue.Instruments = out
		}
	}
	if k := os.Getenv("OPERATOR_KEY"); k != "" {
		cfg.Venue.OperatorKey = k
	}
	if p := os.Getenv("DB_PATH"); p != "" {
		cfg.Node.DBPath = p
	}
	if p := os.Getenv("WAL_PATH"); p != "" {
		cfg.Node.WALPath = p
	}
	if a := os.Getenv("API_ADDR"); a != "" {
		cfg.Node.APIAddr = a
	}
	if l := os.Getenv("LISTEN"); l != "" {
		cfg.Node.Listen = l
	}
	if bs := os.Getenv("BOOTSTRAP"); bs != "" {
		var out []string
		for _, a := range strings.Split(bs, ",") {
			if a = strings.TrimSpace(a); a != "" {
				out = append(out, a)
			}
		}
		cfg.Node.Bootstrap = out
	}
	if f := os.Getenv("LOG_FILE"); f != "" {
		cfg.Node.LogFile = f
	}

	return cfg
}
