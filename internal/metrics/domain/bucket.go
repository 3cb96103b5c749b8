package domain

import (
	"fmt"
	"time"

	catalogdomain "github.com/loyaltylabs/loyalsync/internal/catalog/domain"
)

// CapBucket identifies one concrete cap window for one member. A composite
// struct key rather than a concatenated string, so collisions are impossible
// by construction.
type CapBucket struct {
	MemberID    int64
	PromotionID int64
	Bucket      string
}

// BucketKey maps a transaction date onto the cap window it falls in.
// Each period branches strictly; there is no fallthrough between cases.
func BucketKey(t time.Time, period catalogdomain.CapPeriod) string {
	switch period {
	case catalogdomain.CapQuarterly:
		quarter := (int(t.Month())-1)/3 + 1
		return fmt.Sprintf("%04dQ%d", t.Year(), quarter)
	case catalogdomain.CapYearly:
		return fmt.Sprintf("%04d", t.Year())
	default: // monthly
		return fmt.Sprintf("%04d%02d", t.Year(), int(t.Month()))
	}
}
