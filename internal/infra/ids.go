package infra

import (
	"fmt"
	"hash/fnv"
	"os"

	"github.com/bwmarrin/snowflake"
)

// NewIDNode builds a snowflake node for user-visible identifiers (orders,
// tracks). The node number is derived from the hostname so multiple api or
// worker instances do not mint colliding ids.
func NewIDNode() (*snowflake.Node, error) {
	host, err := os.Hostname()
	if err != nil {
		host = "tunesmith"
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(host))
	node, err := snowflake.NewNode(int64(h.Sum32() % 1024))
	if err != nil {
		return nil, fmt.Errorf("snowflake node: %w", err)
	}
	return node, nil
}
