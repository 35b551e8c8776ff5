package models

// ReviewDraft is the mutable form state. Values are kept exactly as typed so a
// failed submission can re-render them. Draft fields carry no binding rules;
// reviewform.Validate produces every draft message.
type ReviewDraft struct {
	ReviewText   string `json:"review" form:"review"`
	PurchaseDate string `json:"purchase_date" form:"purchase_date"`
	MakeModel    string `json:"car" form:"cars"`
	Year         string `json:"car_year" form:"car_year"`
}

// ReviewSubmission is the POST body accepted by the review-submission endpoint
type ReviewSubmission struct {
	Name         string `json:"name"`
	DealershipID int    `json:"dealership"`
	Review       string `json:"review"`
	Purchase     bool   `json:"purchase"`
	PurchaseDate string `json:"purchase_date"`
	CarMake      string `json:"car_make"`
	CarModel     string `json:"car_model"`
	CarYear      int    `json:"car_year"`
}

// DealerURI binds the dealer id route parameter
type DealerURI struct {
	ID int `uri:"id" binding:"required,min=1"`
}

// PostReviewForm is the urlencoded body posted by the rendered page
type PostReviewForm struct {
	ReviewDraft
	FormToken      string `form:"form_token" binding:"omitempty,uuid"`
	RecaptchaToken string `form:"g-recaptcha-response"`
}

// PostReviewRequest is the JSON body of POST /api/v1/postreview/:id
type PostReviewRequest struct {
	ReviewDraft
	FormToken      string `json:"form_token" binding:"omitempty,uuid"`
	RecaptchaToken string `json:"recaptcha_token"`
}

// PostReviewResponse is the JSON answer of POST /api/v1/postreview/:id
type PostReviewResponse struct {
	Redirect string `json:"redirect,omitempty"`
	Error    string `json:"error,omitempty"`
	Status   string `json:"status,omitempty"`
}

// ReviewPageState is the JSON view of a loaded review page
type ReviewPageState struct {
	DealerID  int        `json:"dealer_id"`
	Heading   string     `json:"heading"`
	Dealer    Dealer     `json:"dealer"`
	CarModels []CarModel `json:"car_models"`
	Status    string     `json:"status"`
	Error     string     `json:"error,omitempty"`
	FormToken string     `json:"form_token"`
}
