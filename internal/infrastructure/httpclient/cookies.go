package httpclient

import (
	"bufio"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// ErrCredentials marks a failure to acquire source credentials.
var ErrCredentials = errors.New("source credentials unavailable")

// LoadCookies reads a Netscape cookies.txt export (the format written by
// browser extensions and yt-dlp) into jar and returns how many were loaded.
func LoadCookies(jar http.CookieJar, path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrCredentials, err)
	}
	defer f.Close()

	byHost := map[string][]*http.Cookie{}
	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())

		httpOnly := false
		if strings.HasPrefix(line, "#HttpOnly_") {
			httpOnly = true
			line = strings.TrimPrefix(line, "#HttpOnly_")
		}
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Split(line, "\t")
		if len(fields) != 7 {
			return 0, fmt.Errorf("%w: %s:%d: expected 7 tab-separated fields, got %d", ErrCredentials, path, lineNo, len(fields))
		}

		cookie, host, err := parseCookieFields(fields)
		if err != nil {
			return 0, fmt.Errorf("%w: %s:%d: %v", ErrCredentials, path, lineNo, err)
		}
		cookie.HttpOnly = httpOnly
		if !cookie.Expires.IsZero() && cookie.Expires.Before(time.Now()) {
			continue
		}
		byHost[host] = append(byHost[host], cookie)
	}
	if err := scanner.Err(); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrCredentials, err)
	}

	total := 0
	for host, cookies := range byHost {
		jar.SetCookies(&url.URL{Scheme: "https", Host: host, Path: "/"}, cookies)
		total += len(cookies)
	}
	return total, nil
}

func parseCookieFields(fields []string) (*http.Cookie, string, error) {
	domain := strings.TrimSpace(fields[0])
	if domain == "" {
		return nil, "", errors.New("empty domain")
	}
	host := strings.TrimPrefix(domain, ".")

	expires, err := strconv.ParseInt(strings.TrimSpace(fields[4]), 10, 64)
	if err != nil {
		return nil, "", fmt.Errorf("invalid expiry %q", fields[4])
	}

	cookie := &http.Cookie{
		Path:   fields[2],
		Secure: strings.EqualFold(fields[3], "TRUE"),
		Name:   fields[5],
		Value:  fields[6],
	}
	if strings.EqualFold(fields[1], "TRUE") {
		cookie.Domain = domain
	}
	if expires > 0 {
		cookie.Expires = time.Unix(expires, 0)
	}
	return cookie, host, nil
}
