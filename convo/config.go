package convo

import (
	"time"

	"github.com/spf13/viper"
)

// Viper keys for the Tracker's runtime-mutable settings (spec.md §6). Bound
// here the same way the teacher's trace/rate_limit.go registers its own
// tunables, so a CLI can override them with flags via viper.BindPFlag.
const (
	MaxConversationsKey       = "max-conversations"
	ConversationTimeoutKey    = "conversation-timeout-seconds"
	EnableStreamReassemblyKey = "enable-stream-reassembly"
	MaxStreamSizeKey          = "max-stream-size-bytes"
)

func init() {
	viper.SetDefault(MaxConversationsKey, 100000)
	viper.SetDefault(ConversationTimeoutKey, 3600)
	viper.SetDefault(EnableStreamReassemblyKey, true)
	viper.SetDefault(MaxStreamSizeKey, 10*1024*1024)
}

// Config holds the Tracker's runtime-mutable settings. NewTracker seeds a
// Config from viper's current defaults; embedders that don't want a global
// CLI config can build one directly and skip viper entirely.
type Config struct {
	// MaxConversations is the cap-eviction threshold: once exceeded, the
	// conversation with the smallest EndTime is evicted (spec.md §4.1).
	MaxConversations uint64

	// ConversationTimeout is the idle age after which a conversation with
	// no recent traffic is eligible for eviction via EvictExpired (the
	// viper key holds it in seconds). Zero disables age-based eviction.
	ConversationTimeout time.Duration

	// EnableStreamReassembly gates the stream subsystem (spec.md §4.1).
	EnableStreamReassembly bool

	// MaxStreamSize bounds retained payload bytes per stream per
	// direction; excess bytes are truncated rather than stored.
	MaxStreamSize uint64
}

// DefaultConfig returns the Config spec.md §6/§4 document as defaults,
// sourced from viper so CLI flags bound to the keys above take effect.
func DefaultConfig() Config {
	return Config{
		MaxConversations:       uint64(viper.GetInt64(MaxConversationsKey)),
		ConversationTimeout:    time.Duration(viper.GetInt64(ConversationTimeoutKey)) * time.Second,
		EnableStreamReassembly: viper.GetBool(EnableStreamReassemblyKey),
		MaxStreamSize:          uint64(viper.GetInt64(MaxStreamSizeKey)),
	}
}
