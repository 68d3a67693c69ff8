package api

import "time"

// ErrorResponse is the body of every non-validation error.
type ErrorResponse struct {
	Error     string    `json:"error"`
	Details   *string   `json:"details,omitempty"`
	RequestId string    `json:"requestId"`
	Timestamp time.Time `json:"timestamp"`
}

type ValidationError struct {
	Field string `json:"field"`
	Issue string `json:"issue"`
}

type ValidationErrorResponse struct {
	Error            string            `json:"error"`
	ValidationErrors []ValidationError `json:"validationErrors"`
	RequestId        string            `json:"requestId"`
	Timestamp        time.Time         `json:"timestamp"`
}

type SystemInfo struct {
	Version     string `json:"version"`
	Environment string `json:"environment"`
}

type HealthcheckResponse struct {
	Status     string     `json:"status"`
	SystemInfo SystemInfo `json:"systemInfo"`
}

type CheckoutSessionRequest struct {
	BundleId string `json:"bundleId" validate:"required,max=64"`
}

type CheckoutSessionResponse struct {
	SessionId   string `json:"sessionId"`
	RedirectUrl string `json:"redirectUrl"`
}

type GrantAccessRequest struct {
	BundleId         string `json:"bundleId" validate:"required,max=64"`
	PaymentReference string `json:"paymentReference" validate:"required,payment_reference"`
}

type BundleSummary struct {
	Id       string `json:"id"`
	Title    string `json:"title"`
	Price    string `json:"price"`
	Currency string `json:"currency"`
}

type CreatorSummary struct {
	Id          string  `json:"id"`
	DisplayName *string `json:"displayName,omitempty"`
}

type GrantAccessResponse struct {
	Granted        bool           `json:"granted"`
	AlreadyGranted bool           `json:"alreadyGranted"`
	PurchaseId     string         `json:"purchaseId"`
	Bundle         BundleSummary  `json:"bundle"`
	Creator        CreatorSummary `json:"creator"`
}

type PurchaseStatus string

const (
	PurchaseStatusPending   PurchaseStatus = "pending"
	PurchaseStatusCompleted PurchaseStatus = "completed"
	PurchaseStatusFailed    PurchaseStatus = "failed"
)

type Purchase struct {
	Id                 string         `json:"id"`
	BundleId           string         `json:"bundleId"`
	CreatorId          string         `json:"creatorId"`
	Amount             int64          `json:"amount"`
	Currency           string         `json:"currency"`
	Status             PurchaseStatus `json:"status"`
	VerificationMethod string         `json:"verificationMethod"`
	CreatedAt          time.Time      `json:"createdAt"`
	CompletedAt        *time.Time     `json:"completedAt,omitempty"`
}

type CheckAccessParams struct {
	BundleId string `form:"bundleId" json:"bundleId"`
}

type CheckAccessResponse struct {
	HasAccess bool      `json:"hasAccess"`
	Purchase  *Purchase `json:"purchase,omitempty"`
}

type ContentItem struct {
	Id       string `json:"id"`
	Title    string `json:"title"`
	Url      string `json:"url"`
	MimeType string `json:"mimeType"`
	Size     int64  `json:"size"`
}

type UnlockedContentResponse struct {
	BundleId string        `json:"bundleId"`
	Items    []ContentItem `json:"items"`
}

type GetPurchasesOfUserParams struct {
	Page     *int `form:"page,omitempty" json:"page,omitempty"`
	PageSize *int `form:"pageSize,omitempty" json:"pageSize,omitempty"`
}

type Metadata struct {
	CurrentPage  int `json:"currentPage"`
	FirstPage    int `json:"firstPage"`
	LastPage     int `json:"lastPage"`
	PageSize     int `json:"pageSize"`
	TotalRecords int `json:"totalRecords"`
}

type PurchaseListResponse struct {
	Purchases []Purchase `json:"purchases"`
	Metadata  Metadata   `json:"metadata"`
}
