package resolver

import (
	"bufio"
	"os"
	"strings"
)

var DefaultPublicNameservers = []string{
	"1.1.1.1",
	"8.8.8.8",
}

// SystemNameservers returns the nameservers from /etc/resolv.conf, falling back to
// public resolvers when none are configured.
func SystemNameservers() []string {
	nameservers, err := loadNameservers("/etc/resolv.conf")
	if err != nil || len(nameservers) == 0 {
		return append([]string{}, DefaultPublicNameservers...)
	}
	return nameservers
}

func loadNameservers(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	nameservers := []string{}
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, ";") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		if strings.ToLower(fields[0]) == "nameserver" {
			nameservers = append(nameservers, fields[1])
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return uniqueStrings(nameservers), nil
}

func uniqueStrings(values []string) []string {
	seen := map[string]struct{}{}
	out := []string{}
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		key := strings.ToLower(v)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, v)
	}
	return out
}
