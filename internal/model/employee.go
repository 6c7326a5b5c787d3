package model

import "time"

type Employee struct {
	ID           int64     `json:"id"`
	NameEn       string    `json:"name_en"`
	NameAr       string    `json:"name_ar"`
	Email        string    `json:"email"`
	JobTitle     string    `json:"job_title"`
	DepartmentID *int64    `json:"department_id"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type Department struct {
	ID     int64  `json:"id"`
	NameEn string `json:"name_en"`
	NameAr string `json:"name_ar"`
}
