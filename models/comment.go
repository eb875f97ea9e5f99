package models

import (
	"strconv"
	"strings"
	"time"
)

// CommentHeader is the fixed column schema for comment output.
var CommentHeader = []string{
	"comment_id", "user_id", "user_nick", "user_member", "user_image", "content",
	"publish_time", "ip_location", "score", "scenery_score", "fun_score", "value_score",
	"useful_count", "reply_count", "image_count", "image_urls", "is_picked", "publish_type",
	"poi_id", "scraped_at",
}

// Comment represents one reviewer's comment on an attraction.
type Comment struct {
	CommentID    string    `json:"comment_id" validate:"required"`
	UserID       string    `json:"user_id"`
	UserNick     string    `json:"user_nick"`
	UserMember   string    `json:"user_member"`
	UserImage    string    `json:"user_image"`
	Content      string    `json:"content"`
	PublishTime  string    `json:"publish_time"`
	IPLocation   string    `json:"ip_location"`
	Score        float64   `json:"score"`
	SceneryScore float64   `json:"scenery_score"`
	FunScore     float64   `json:"fun_score"`
	ValueScore   float64   `json:"value_score"`
	UsefulCount  int       `json:"useful_count"`
	ReplyCount   int       `json:"reply_count"`
	ImageURLs    []string  `json:"image_urls"`
	IsPicked     bool      `json:"is_picked"`
	PublishType  string    `json:"publish_type"`
	POIID        int64     `json:"poi_id" validate:"required"`
	ScrapedAt    time.Time `json:"scraped_at"`
}

func (c *Comment) Kind() string { return "comments" }

func (c *Comment) Key() string {
	return strconv.FormatInt(c.POIID, 10) + "/" + c.CommentID
}

func (c *Comment) Header() []string { return CommentHeader }

func (c *Comment) Row() []string {
	return []string{
		c.CommentID,
		c.UserID,
		c.UserNick,
		c.UserMember,
		c.UserImage,
		c.Content,
		c.PublishTime,
		c.IPLocation,
		formatFloat(c.Score),
		formatFloat(c.SceneryScore),
		formatFloat(c.FunScore),
		formatFloat(c.ValueScore),
		strconv.Itoa(c.UsefulCount),
		strconv.Itoa(c.ReplyCount),
		strconv.Itoa(len(c.ImageURLs)),
		strings.Join(c.ImageURLs, "|"),
		strconv.FormatBool(c.IsPicked),
		c.PublishType,
		strconv.FormatInt(c.POIID, 10),
		formatTime(c.ScrapedAt),
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}
