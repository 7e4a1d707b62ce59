// Package idgen generates order and transaction identifiers.
//
// An order id is only unique here up to "same millisecond, same random
// suffix"; callers that persist ids check for collisions and redraw
// (see the orchestrator's bounded retry loop).
package idgen

import (
	"fmt"
	"math/rand"
	"sync"
	"time"
)

var (
	mu  sync.Mutex
	rng = rand.New(rand.NewSource(time.Now().UnixNano()))
)

func suffix(n int) int64 {
	mu.Lock()
	defer mu.Unlock()
	return rng.Int63n(int64(n))
}

// OrderID returns a recharge order id: RCH + unix-millis + 4 random digits.
func OrderID() string {
	return fmt.Sprintf("RCH%d%04d", time.Now().UnixMilli(), suffix(10000))
}

// TransactionNo returns a ledger entry number. Entries are written far more
// often than orders (refunds, commission, transfers), so the suffix is
// wider to keep redraws rare.
func TransactionNo() string {
	return fmt.Sprintf("TXN%s%08d", time.Now().Format("20060102150405"), suffix(100000000))
}

// FundOrderID returns an order id for wallet transfers and self-loads.
func FundOrderID() string {
	return fmt.Sprintf("FND%d%04d", time.Now().UnixMilli(), suffix(10000))
}
