// Package source describes the paginated remote listings the harvester can walk.
package source

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/aluiziolira/go-scrape-reviews/models"
	"github.com/aluiziolira/go-scrape-reviews/parser"
)

const (
	// CommentsEndpoint is the comment listing API of one attraction.
	CommentsEndpoint = "https://m.ctrip.com/restapi/soa2/13444/json/getCommentCollapseList"
	// AttractionsEndpoint is the attraction listing API of one district.
	AttractionsEndpoint = "https://m.ctrip.com/restapi/soa2/18109/json/getAttractionList"
)

type requestHead struct {
	CID       string   `json:"cid"`
	CTok      string   `json:"ctok"`
	CVer      string   `json:"cver"`
	Lang      string   `json:"lang"`
	SID       string   `json:"sid"`
	SysCode   string   `json:"syscode"`
	Auth      string   `json:"auth"`
	XSID      string   `json:"xsid"`
	Extension []string `json:"extension"`
}

func newHead(clientID, sysCode string) requestHead {
	return requestHead{
		CID:       clientID,
		CVer:      "1.0",
		Lang:      "01",
		SID:       "8888",
		SysCode:   sysCode,
		Extension: []string{},
	}
}

// Comments is the comment listing of one attraction (POI).
type Comments struct {
	URL      string
	POIID    int64
	SortType int
	// Now stamps harvested records; defaults to time.Now.
	Now func() time.Time
}

func (c *Comments) Name() string { return fmt.Sprintf("comments/%d", c.POIID) }

func (c *Comments) Endpoint() string {
	if c.URL == "" {
		return CommentsEndpoint
	}
	return c.URL
}

// Referer is the attraction page a browser would request the listing from.
func (c *Comments) Referer() string {
	return fmt.Sprintf("https://you.ctrip.com/sight/%d.html", c.POIID)
}

type commentArg struct {
	ChannelType  int   `json:"channelType"`
	CollapseType int   `json:"collapseType"`
	CommentTagID int   `json:"commentTagId"`
	PageIndex    int   `json:"pageIndex"`
	PageSize     int   `json:"pageSize"`
	POIID        int64 `json:"poiId"`
	SourceType   int   `json:"sourceType"`
	SortType     int   `json:"sortType"`
	StarType     int   `json:"starType"`
}

func (c *Comments) Body(req models.PageRequest, clientID string) ([]byte, error) {
	return json.Marshal(struct {
		Arg  commentArg  `json:"arg"`
		Head requestHead `json:"head"`
	}{
		Arg: commentArg{
			ChannelType: 2,
			PageIndex:   req.Index,
			PageSize:    req.Size,
			POIID:       c.POIID,
			SourceType:  1,
			SortType:    c.SortType,
		},
		Head: newHead(clientID, "09"),
	})
}

func (c *Comments) Decode(body []byte) (parser.Listing, error) {
	return parser.DecodeComments(body, c.POIID, stamp(c.Now))
}

// Attractions is the attraction listing of one district.
type Attractions struct {
	URL        string
	DistrictID int64
	SortType   int
	Now        func() time.Time
}

func (a *Attractions) Name() string { return fmt.Sprintf("attractions/%d", a.DistrictID) }

func (a *Attractions) Endpoint() string {
	if a.URL == "" {
		return AttractionsEndpoint
	}
	return a.URL
}

func (a *Attractions) Referer() string { return "https://you.ctrip.com/" }

type filter struct {
	FilterItems []string `json:"filterItems"`
}

func (a *Attractions) Body(req models.PageRequest, clientID string) ([]byte, error) {
	return json.Marshal(struct {
		Head             requestHead `json:"head"`
		Scene            string      `json:"scene"`
		DistrictID       int64       `json:"districtId"`
		Index            int         `json:"index"`
		SortType         int         `json:"sortType"`
		Count            int         `json:"count"`
		Filter           filter      `json:"filter"`
		ReturnModuleType string      `json:"returnModuleType"`
	}{
		Head:             newHead(clientID, "999"),
		Scene:            "online",
		DistrictID:       a.DistrictID,
		Index:            req.Index,
		SortType:         a.SortType,
		Count:            req.Size,
		Filter:           filter{FilterItems: []string{}},
		ReturnModuleType: "product",
	})
}

func (a *Attractions) Decode(body []byte) (parser.Listing, error) {
	return parser.DecodeAttractions(body, a.DistrictID, stamp(a.Now))
}

func stamp(now func() time.Time) time.Time {
	if now == nil {
		return time.Now()
	}
	return now()
}
