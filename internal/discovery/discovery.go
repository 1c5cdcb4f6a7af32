// Package discovery scans a subnet for esp32-sub000 devices by
// sending the unframed "info" command to UDP port 24 and collecting
// whichever hosts answer, grounded on the concurrent-scan/worker-pool
// shape of the teacher's original gRPC-based network discovery.
package discovery

import (
	"fmt"
	"net"
	"strings"
	"sync"
	"time"
)

// Result describes one device that answered the probe.
type Result struct {
	Address    string
	LatencyMs  int64
	Responding bool
	Info       string
	Error      string
}

// Config controls the sweep.
type Config struct {
	Subnet          string
	Port            int
	Timeout         time.Duration
	ConcurrentScans int
}

func NewConfig() Config {
	return Config{
		Port:            24,
		Timeout:         500 * time.Millisecond,
		ConcurrentScans: 32,
	}
}

// Scan probes every host in config.Subnet and returns the ones that
// answered, in no particular order.
func Scan(config Config) ([]Result, error) {
	if config.Subnet == "" {
		subnet, err := localSubnet()
		if err != nil {
			return nil, fmt.Errorf("determine local subnet: %w", err)
		}
		config.Subnet = subnet
	}

	ip, ipnet, err := net.ParseCIDR(config.Subnet)
	if err != nil {
		return nil, fmt.Errorf("invalid subnet %s: %w", config.Subnet, err)
	}

	var ips []string
	for cur := ip.Mask(ipnet.Mask); ipnet.Contains(cur); incrementIP(cur) {
		ips = append(ips, cur.String())
	}

	var wg sync.WaitGroup
	semaphore := make(chan struct{}, config.ConcurrentScans)
	resultsCh := make(chan Result, len(ips))

	for _, host := range ips {
		wg.Add(1)
		semaphore <- struct{}{}
		go func(host string) {
			defer wg.Done()
			defer func() { <-semaphore }()
			resultsCh <- probe(host, config.Port, config.Timeout)
		}(host)
	}

	go func() {
		wg.Wait()
		close(resultsCh)
	}()

	var found []Result
	for r := range resultsCh {
		if r.Responding {
			found = append(found, r)
		}
	}
	return found, nil
}

func probe(host string, port int, timeout time.Duration) Result {
	addr := fmt.Sprintf("%s:%d", host, port)
	start := time.Now()
	result := Result{Address: addr}

	conn, err := net.DialTimeout("udp", addr, timeout)
	if err != nil {
		result.Error = err.Error()
		return result
	}
	defer conn.Close()

	_ = conn.SetDeadline(time.Now().Add(timeout))
	if _, err := conn.Write([]byte("info\n")); err != nil {
		result.Error = err.Error()
		return result
	}

	buf := make([]byte, 2048)
	n, err := conn.Read(buf)
	if err != nil {
		result.Error = err.Error()
		return result
	}

	result.Responding = true
	result.Info = strings.TrimSpace(string(buf[:n]))
	result.LatencyMs = time.Since(start).Milliseconds()
	return result
}

func localSubnet() (string, error) {
	interfaces, err := net.Interfaces()
	if err != nil {
		return "", err
	}
	for _, iface := range interfaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			ipNet, ok := addr.(*net.IPNet)
			if !ok || ipNet.IP.To4() == nil {
				continue
			}
			parts := strings.Split(ipNet.IP.String(), ".")
			if len(parts) == 4 {
				return fmt.Sprintf("%s.%s.%s.0/24", parts[0], parts[1], parts[2]), nil
			}
		}
	}
	return "", fmt.Errorf("no suitable network interface found")
}

func incrementIP(ip net.IP) {
	for j := len(ip) - 1; j >= 0; j-- {
		ip[j]++
		if ip[j] > 0 {
			break
		}
	}
}
