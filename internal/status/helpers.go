package status

import (
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

func errStatus(code int) error {
	return fmt.Errorf("status: upstream returned %d", code)
}

func jsonCount(n int64) string {
	return fmt.Sprintf("%d entries", n)
}

// freshFilter matches cache documents that have not yet expired.
func freshFilter() bson.M {
	return bson.M{"expiresAt": bson.M{"$gt": time.Now()}}
}
