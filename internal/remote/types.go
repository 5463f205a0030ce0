package remote

import "time"

// Upload is the control plane's answer to a new deployment.
type Upload struct {
	UploadURL    string `json:"uploadURL"`
	DeploymentID string `json:"deploymentID"`
}

// Deployment is the status of one deployment.
type Deployment struct {
	ID        string    `json:"id"`
	Status    string    `json:"status"`
	URL       string    `json:"url,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}
