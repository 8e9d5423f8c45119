package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"
)

// githubAPIBase is a variable so tests can point the lookup at a local server.
var githubAPIBase = "https://api.github.com"

// errAssetNotFound is returned when the latest release exists but none of its
// assets matches the component's filename pattern.
var errAssetNotFound = errors.New("no matching release asset")

// releaseTarget identifies one component's GitHub repository and the filename
// pattern its downloadable zip must match (anchored at the start of the name;
// the first matching asset wins).
type releaseTarget struct {
	owner        string
	repo         string
	assetPattern *regexp.Regexp
}

var (
	lumaTarget = releaseTarget{
		owner:        "LumaTeam",
		repo:         "Luma3DS",
		assetPattern: regexp.MustCompile(`^Luma3DSv\d+\.\d+\.\d+\.zip`),
	}
	gm9Target = releaseTarget{
		owner:        "d0k3",
		repo:         "GodMode9",
		assetPattern: regexp.MustCompile(`^GodMode9-v\d+\.\d+\.\d+.*\.zip`),
	}
)

type githubReleaseLatest struct {
	TagName string `json:"tag_name"`
	Assets  []struct {
		Name               string `json:"name"`
		BrowserDownloadURL string `json:"browser_download_url"`
	} `json:"assets"`
}

// fetchLatestReleaseInfo queries the latest release of the target repository
// and picks the first asset matching the target pattern. The returned version
// is the tag with its leading "v" stripped.
func fetchLatestReleaseInfo(target releaseTarget) (*ReleaseInfo, error) {
	api := fmt.Sprintf("%s/repos/%s/%s/releases/latest", githubAPIBase, target.owner, target.repo)
	req, err := http.NewRequest("GET", api, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "3DSE/"+Version)

	resp, err := doWithProxyFallback(req, 15*time.Second)
	if err != nil {
		return nil, fmt.Errorf("error connecting to GitHub: %w. Please check your internet connection", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != 200 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 8<<10))
		return nil, fmt.Errorf("GitHub API status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(b)))
	}

	var rel githubReleaseLatest
	if err := json.NewDecoder(resp.Body).Decode(&rel); err != nil {
		return nil, fmt.Errorf("failed to parse GitHub release data: %w", err)
	}

	if rel.TagName == "" || !strings.HasPrefix(rel.TagName, "v") {
		return nil, fmt.Errorf("could not find the latest %s version number on GitHub (tag_name missing or invalid)", target.repo)
	}

	for _, asset := range rel.Assets {
		if target.assetPattern.MatchString(asset.Name) {
			return &ReleaseInfo{
				Version:     strings.TrimPrefix(rel.TagName, "v"),
				DownloadURL: asset.BrowserDownloadURL,
			}, nil
		}
	}
	return nil, fmt.Errorf("could not find the %s zip file (pattern %q) in the latest GitHub release: %w",
		target.repo, target.assetPattern.String(), errAssetNotFound)
}

// doWithProxyFallback performs the request with the system proxy, and retries
// once with a direct connection when the proxy itself is the failure (common
// when a local proxy is configured but not running).
func doWithProxyFallback(req *http.Request, timeout time.Duration) (*http.Response, error) {
	if req == nil {
		return nil, errors.New("request is nil")
	}
	proxyURL, proxyUsed := proxyFromEnv(req)

	resp, err := (&http.Client{Timeout: timeout}).Do(req)
	if err == nil {
		return resp, nil
	}
	if !proxyUsed {
		return nil, err
	}

	req2 := req.Clone(req.Context())
	directTransport := &http.Transport{
		Proxy: nil,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	resp2, err2 := (&http.Client{Timeout: timeout, Transport: directTransport}).Do(req2)
	if err2 == nil {
		appendLaunchLogf("http proxy failed, direct ok proxy=%q err=%v", proxyURL, err)
		return resp2, nil
	}

	if isLikelyLocalProxy(proxyURL) {
		return nil, fmt.Errorf("system proxy %s looks unavailable (check your proxy software). proxy error: %v; direct error: %v", proxyURL, err, err2)
	}
	return nil, fmt.Errorf("request failed via system proxy %s: %v; direct also failed: %v", proxyURL, err, err2)
}

func proxyFromEnv(req *http.Request) (string, bool) {
	if req == nil {
		return "", false
	}
	pu, err := http.ProxyFromEnvironment(req)
	if err != nil || pu == nil {
		return "", false
	}
	return pu.String(), true
}

func isLikelyLocalProxy(proxyStr string) bool {
	proxyStr = strings.TrimSpace(proxyStr)
	if proxyStr == "" {
		return false
	}
	u, err := url.Parse(proxyStr)
	if err != nil {
		return false
	}
	host := u.Hostname()
	if host == "" {
		return false
	}
	ip := net.ParseIP(host)
	if ip != nil {
		return ip.IsLoopback()
	}
	return strings.EqualFold(host, "localhost")
}
