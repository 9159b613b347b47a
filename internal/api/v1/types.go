package apiv1

import (
	"fmt"
	"time"

	"github.com/ManuelReschke/ClipPass/app/models"
)

const (
	basePath   = "/api/v1"
	dateLayout = "2006-01-02"
)

// Pong defines model for Pong.
type Pong struct {
	Ping string `json:"ping"`
}

type ErrorResponse struct {
	Error   string            `json:"error"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

type ProfileResponse struct {
	ID        uint   `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Phone     string `json:"phone"`
	Balance   string `json:"balance"`
	URL       string `json:"url"`
}

type SignupResponse struct {
	ProfileResponse
	APIKey string `json:"api_key"`
}

type APIKeyResponse struct {
	APIKey    string     `json:"api_key"`
	Prefix    string     `json:"prefix"`
	CreatedAt *time.Time `json:"created_at"`
}

type LicenseResponse struct {
	ID       uint   `json:"id"`
	Title    string `json:"title"`
	Duration int    `json:"duration"`
	Price    string `json:"price"`
	URL      string `json:"url"`
}

type UserResponse struct {
	ID        uint              `json:"id"`
	Username  string            `json:"username"`
	FirstName string            `json:"first_name"`
	LastName  string            `json:"last_name"`
	Licenses  []LicenseResponse `json:"licenses"`
}

type VideoResponse struct {
	ID          uint      `json:"id"`
	Publisher   string    `json:"publisher,omitempty"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	FileURL     string    `json:"file_url"`
	Category    string    `json:"category"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	IsHide      bool      `json:"is_hide"`
	URL         string    `json:"url"`
}

type SubscriptionResponse struct {
	ID           uint   `json:"id"`
	Username     string `json:"username"`
	License      uint   `json:"license"`
	LicenseUser  string `json:"license_user"`
	LicenseTitle string `json:"license_title"`
	Duration     int    `json:"duration"`
	StartDate    string `json:"start_date"`
	EndDate      string `json:"end_date"`
	IsActive     bool   `json:"is_active"`
	URL          string `json:"url"`
}

type ViewsResponse struct {
	Video uint  `json:"video"`
	Views int64 `json:"views"`
}

type purchaseRequest struct {
	License uint `json:"license"`
}

type commentRequest struct {
	Text string `json:"text"`
}

type ratingRequest struct {
	Rate any `json:"rate"`
}

func presentProfile(a *models.Account) ProfileResponse {
	return ProfileResponse{
		ID:        a.ID,
		Username:  a.User.Username,
		Email:     a.User.Email,
		FirstName: a.User.FirstName,
		LastName:  a.User.LastName,
		Phone:     a.Phone,
		Balance:   models.FormatMoney(a.Balance),
		URL:       basePath + "/profile",
	}
}

func presentLicense(l *models.License, managed bool) LicenseResponse {
	url := fmt.Sprintf("%s/licenses/%d", basePath, l.ID)
	if managed {
		url = fmt.Sprintf("%s/manage/licenses/%d", basePath, l.ID)
	}
	return LicenseResponse{
		ID:       l.ID,
		Title:    l.Title,
		Duration: l.Duration,
		Price:    models.FormatMoney(l.Price),
		URL:      url,
	}
}

func presentLicenses(ls []models.License, managed bool) []LicenseResponse {
	out := make([]LicenseResponse, 0, len(ls))
	for i := range ls {
		out = append(out, presentLicense(&ls[i], managed))
	}
	return out
}

func presentUsers(accounts []models.Account) []UserResponse {
	out := make([]UserResponse, 0, len(accounts))
	for i := range accounts {
		a := &accounts[i]
		out = append(out, UserResponse{
			ID:        a.ID,
			Username:  a.User.Username,
			FirstName: a.User.FirstName,
			LastName:  a.User.LastName,
			Licenses:  presentLicenses(a.Licenses, false),
		})
	}
	return out
}

// presentVideo renders the public view, which names the publisher. The
// manage view omits it.
func presentVideo(v *models.Video, managed bool) VideoResponse {
	resp := VideoResponse{
		ID:          v.ID,
		Title:       v.Title,
		Description: v.Description,
		FileURL:     v.FileURL,
		Category:    v.Category,
		CreatedAt:   v.CreatedAt,
		UpdatedAt:   v.UpdatedAt,
		IsHide:      v.Hidden,
	}
	if managed {
		resp.URL = fmt.Sprintf("%s/manage/videos/%d", basePath, v.ID)
	} else {
		resp.Publisher = v.Account.User.Username
		resp.URL = fmt.Sprintf("%s/videos/%d", basePath, v.ID)
	}
	return resp
}

func presentVideos(vs []models.Video, managed bool) []VideoResponse {
	out := make([]VideoResponse, 0, len(vs))
	for i := range vs {
		out = append(out, presentVideo(&vs[i], managed))
	}
	return out
}

func presentSubscription(e *models.Entitlement, today time.Time) SubscriptionResponse {
	return SubscriptionResponse{
		ID:           e.ID,
		Username:     e.Account.User.Username,
		License:      e.LicenseID,
		LicenseUser:  e.License.Account.User.Username,
		LicenseTitle: e.License.Title,
		Duration:     e.Duration,
		StartDate:    e.StartDate.Format(dateLayout),
		EndDate:      e.EndDate.Format(dateLayout),
		IsActive:     e.IsActiveOn(today),
		URL:          fmt.Sprintf("%s/subscriptions/%d", basePath, e.ID),
	}
}

func presentSubscriptions(es []models.Entitlement, today time.Time) []SubscriptionResponse {
	out := make([]SubscriptionResponse, 0, len(es))
	for i := range es {
		out = append(out, presentSubscription(&es[i], today))
	}
	return out
}
