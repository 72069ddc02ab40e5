package wireless

import (
	"net"
	"strconv"
)

// DefaultPort is the well-known port adbd listens on in TCP mode.
const DefaultPort = 5555

// Address is where a switched device is expected to be reachable.
type Address struct {
	Host string
	Port int
}

func (a Address) String() string {
	return net.JoinHostPort(a.Host, strconv.Itoa(a.Port))
}

// ValidPort reports whether p is a usable TCP port.
func ValidPort(p int) bool {
	return p >= 1 && p <= 65535
}
