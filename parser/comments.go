package parser

import (
	"time"

	"github.com/aluiziolira/go-scrape-reviews/models"
)

const (
	commentOKCode    = 200
	sceneryScoreName = "景色"
	funScoreName     = "趣味"
	valueScoreName   = "性价比"
)

type commentEnvelope struct {
	Code   *int   `json:"code"`
	Msg    string `json:"msg"`
	Result struct {
		Items      []commentItem `json:"items"`
		TotalCount int           `json:"totalCount"`
	} `json:"result"`
}

type commentItem struct {
	CommentID flexString `json:"commentId"`
	UserInfo  struct {
		UserID     flexString `json:"userId"`
		UserNick   string     `json:"userNick"`
		UserMember flexString `json:"userMember"`
		UserImage  string     `json:"userImage"`
	} `json:"userInfo"`
	Content       string  `json:"content"`
	PublishTime   string  `json:"publishTime"`
	IPLocatedName string  `json:"ipLocatedName"`
	Score         float64 `json:"score"`
	Scores        []struct {
		Name  string  `json:"name"`
		Score float64 `json:"score"`
	} `json:"scores"`
	UsefulCount int `json:"usefulCount"`
	ReplyCount  int `json:"replyCount"`
	Images      []struct {
		ImageSrcURL string `json:"imageSrcUrl"`
	} `json:"images"`
	IsPicked       bool   `json:"isPicked"`
	PublishTypeTag string `json:"publishTypeTag"`
}

// DecodeComments decodes a comment listing response for the attraction poiID.
// A missing status code is treated as malformed; a non-200 code yields an *APIError.
func DecodeComments(body []byte, poiID int64, scrapedAt time.Time) (Listing, error) {
	var env commentEnvelope
	if err := decodeJSON(body, &env); err != nil {
		return Listing{}, err
	}
	if env.Code == nil {
		return Listing{}, ErrMalformedPayload
	}
	if *env.Code != commentOKCode {
		return Listing{}, &APIError{
			Code:      *env.Code,
			Message:   env.Msg,
			Throttled: isThrottleMessage(env.Msg),
		}
	}

	records := make([]models.Record, 0, len(env.Result.Items))
	for _, item := range env.Result.Items {
		records = append(records, item.toComment(poiID, scrapedAt))
	}
	return Listing{Records: records, Items: len(env.Result.Items)}, nil
}

func (item commentItem) toComment(poiID int64, scrapedAt time.Time) *models.Comment {
	scores := make(map[string]float64, len(item.Scores))
	for _, s := range item.Scores {
		scores[s.Name] = s.Score
	}

	var images []string
	for _, img := range item.Images {
		if img.ImageSrcURL != "" {
			images = append(images, img.ImageSrcURL)
		}
	}

	return &models.Comment{
		CommentID:    string(item.CommentID),
		UserID:       string(item.UserInfo.UserID),
		UserNick:     item.UserInfo.UserNick,
		UserMember:   string(item.UserInfo.UserMember),
		UserImage:    item.UserInfo.UserImage,
		Content:      NormalizeContent(item.Content),
		PublishTime:  ConvertDate(item.PublishTime),
		IPLocation:   item.IPLocatedName,
		Score:        item.Score,
		SceneryScore: scores[sceneryScoreName],
		FunScore:     scores[funScoreName],
		ValueScore:   scores[valueScoreName],
		UsefulCount:  item.UsefulCount,
		ReplyCount:   item.ReplyCount,
		ImageURLs:    images,
		IsPicked:     item.IsPicked,
		PublishType:  item.PublishTypeTag,
		POIID:        poiID,
		ScrapedAt:    scrapedAt,
	}
}
