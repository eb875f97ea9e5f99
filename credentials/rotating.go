package credentials

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"
	random "github.com/mazen160/go-random"
)

// DefaultUserAgents is the desktop browser pool rotated across attempts.
var DefaultUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/118.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Safari/605.1.15",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:109.0) Gecko/20100101 Firefox/119.0",
}

const siteOrigin = "https://you.ctrip.com"

// Rotating builds a new browser-like identity for every attempt.
type Rotating struct {
	// Referer is the page the listing is requested from.
	Referer    string
	UserAgents []string

	now func() time.Time
}

// NewRotating returns a provider using DefaultUserAgents.
func NewRotating(referer string) *Rotating {
	if referer == "" {
		referer = siteOrigin + "/"
	}
	return &Rotating{
		Referer:    referer,
		UserAgents: DefaultUserAgents,
		now:        time.Now,
	}
}

func (r *Rotating) Credentials() (Bundle, error) {
	now := time.Now
	if r.now != nil {
		now = r.now
	}
	ts := strconv.FormatInt(now().UnixMilli(), 10)
	sum := md5.Sum([]byte(ts))
	digest := hex.EncodeToString(sum[:])
	guid := digest[:20]

	suffix, err := random.String(12)
	if err != nil {
		return Bundle{}, fmt.Errorf("generate visitor id: %w", err)
	}
	vid := ts + "." + suffix

	ua := DefaultUserAgents[0]
	if len(r.UserAgents) > 0 {
		ua = r.UserAgents[rand.Intn(len(r.UserAgents))]
	}

	hdr := http.Header{}
	hdr.Set("Accept", "*/*")
	hdr.Set("Accept-Language", "zh-CN,zh;q=0.9,en;q=0.8")
	hdr.Set("Content-Type", "application/json")
	hdr.Set("Cookieorigin", siteOrigin)
	hdr.Set("Origin", siteOrigin)
	hdr.Set("Referer", r.Referer)
	hdr.Set("Sec-Fetch-Dest", "empty")
	hdr.Set("Sec-Fetch-Mode", "cors")
	hdr.Set("Sec-Fetch-Site", "same-site")
	hdr.Set("User-Agent", ua)
	hdr.Set("X-Ctx-Ubt-Pageid", strconv.Itoa(290000+rand.Intn(1000)))
	hdr.Set("X-Ctx-Ubt-Pvid", strconv.Itoa(1+rand.Intn(10)))
	hdr.Set("X-Ctx-Ubt-Sid", strconv.Itoa(1+rand.Intn(10)))
	hdr.Set("X-Ctx-Ubt-Vid", vid)
	hdr.Set("X-Ctx-Wclient-Req", digest)

	cookies := []*http.Cookie{
		{Name: "GUID", Value: guid},
		{Name: "nfes_isSupportWebP", Value: "1"},
		{Name: "UBT_VID", Value: vid},
		{Name: "MKT_CKID", Value: ts + "." + digest[:8]},
		{Name: "_RGUID", Value: uuid.NewString()},
	}

	query := url.Values{}
	query.Set("_fxpcqlniredt", guid)
	query.Set("x-traceID", fmt.Sprintf("%s-%s-%d", guid, ts, 1000000+rand.Intn(9000000)))

	return Bundle{
		Header:   hdr,
		Cookies:  cookies,
		Query:    query,
		ClientID: guid,
	}, nil
}
