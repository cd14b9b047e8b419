package convo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestApplicationProtocol_ClassifiesOnLowerPortOnly(t *testing.T) {
	// 8080 is well-known but isn't the lower port here, so the pair
	// should not classify as HTTP.
	assert.Equal(t, "", applicationProtocol(Endpoint{Port: 8080}, Endpoint{Port: 70}))

	// 80 is well-known and is the lower port.
	assert.Equal(t, "HTTP", applicationProtocol(Endpoint{Port: 80}, Endpoint{Port: 40000}))

	// Order of arguments doesn't matter.
	assert.Equal(t, "HTTP", applicationProtocol(Endpoint{Port: 40000}, Endpoint{Port: 80}))

	// Neither port well-known.
	assert.Equal(t, "", applicationProtocol(Endpoint{Port: 40000}, Endpoint{Port: 40001}))
}
