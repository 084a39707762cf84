package utils

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// NewReference builds a unique external reference such as
// TXN-20250901T120000-1a2b3c4d. The uuid suffix keeps concurrent generation
// collision-free.
func NewReference(prefix string) string {
	suffix := strings.Split(uuid.NewString(), "-")[0]
	return fmt.Sprintf("%s-%s-%s", prefix, time.Now().UTC().Format("20060102T150405"), suffix)
}
