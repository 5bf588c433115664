package resolver

import (
	"bufio"
	"errors"
	"io/fs"
	"net"
	"os"
	"strings"

	"github.com/jaxxstorm/atlastodo/internal/model"
)

const DefaultHostsFile = "/etc/hosts"

// lookupHosts returns the addresses pinned to host in a hosts(5) file, in file
// order. A missing file is the same as an empty one.
func lookupHosts(path, host string) ([]model.AddressRecord, error) {
	file, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer file.Close()

	host = strings.ToLower(strings.TrimSuffix(host, "."))
	out := []model.AddressRecord{}
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := scanner.Text()
		if i := strings.Index(line, "#"); i >= 0 {
			line = line[:i]
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		addr := fields[0]
		ip := net.ParseIP(addr)
		if i := strings.Index(addr, "%"); ip == nil && i > 0 {
			ip = net.ParseIP(addr[:i])
		}
		if ip == nil {
			continue
		}
		for _, name := range fields[1:] {
			if strings.ToLower(strings.TrimSuffix(name, ".")) != host {
				continue
			}
			rec := addressRecord(ip)
			rec.IP = ip.String() + zoneOf(addr)
			out = append(out, rec)
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func zoneOf(addr string) string {
	if i := strings.Index(addr, "%"); i >= 0 {
		return addr[i:]
	}
	return ""
}
