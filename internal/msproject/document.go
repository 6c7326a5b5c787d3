// Package msproject 解析 Microsoft Project 导出的 XML 文档。
package msproject

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

var ErrNotProjectDocument = errors.New("root element is not <Project>")

// Document MS Project XML 的根元素，忽略命名空间
type Document struct {
	XMLName     xml.Name
	Name        string       `xml:"Name"`
	Title       string       `xml:"Title"`
	StartDate   string       `xml:"StartDate"`
	FinishDate  string       `xml:"FinishDate"`
	Tasks       []Task       `xml:"Tasks>Task"`
	Resources   []Resource   `xml:"Resources>Resource"`
	Assignments []Assignment `xml:"Assignments>Assignment"`
}

type Task struct {
	UID             string            `xml:"UID"`
	ID              string            `xml:"ID"`
	Name            string            `xml:"Name"`
	OutlineLevel    string            `xml:"OutlineLevel"`
	Start           string            `xml:"Start"`
	Finish          string            `xml:"Finish"`
	PercentComplete string            `xml:"PercentComplete"`
	Duration        string            `xml:"Duration"`
	Work            string            `xml:"Work"`
	Cost            string            `xml:"Cost"`
	Summary         string            `xml:"Summary"`
	Predecessors    []PredecessorLink `xml:"PredecessorLink"`
}

// Level 返回大纲级别，缺失或无法解析时为 1
func (t Task) Level() int {
	s := strings.TrimSpace(t.OutlineLevel)
	if s == "" {
		return 1
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 1
	}
	return n
}

// Order 返回 ID 字段作为排序键，缺失时为 0
func (t Task) Order() int {
	n, err := strconv.Atoi(strings.TrimSpace(t.ID))
	if err != nil {
		return 0
	}
	return n
}

type PredecessorLink struct {
	PredecessorUID string `xml:"PredecessorUID"`
	Type           string `xml:"Type"`
	LinkLag        string `xml:"LinkLag"`
}

type Resource struct {
	UID  string `xml:"UID"`
	Name string `xml:"Name"`
	Type string `xml:"Type"`
}

type Assignment struct {
	TaskUID     string `xml:"TaskUID"`
	ResourceUID string `xml:"ResourceUID"`
	Units       string `xml:"Units"`
	Work        string `xml:"Work"`
}

// Decode 解析 XML，根元素必须是 Project
func Decode(r io.Reader) (*Document, error) {
	var doc Document
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode project xml: %w", err)
	}
	if doc.XMLName.Local != "Project" {
		return nil, fmt.Errorf("%w: got <%s>", ErrNotProjectDocument, doc.XMLName.Local)
	}
	return &doc, nil
}

// ProjectName 依次取 Title、Name、fallback
func (d *Document) ProjectName(fallback string) string {
	if s := strings.TrimSpace(d.Title); s != "" {
		return s
	}
	if s := strings.TrimSpace(d.Name); s != "" {
		return s
	}
	return fallback
}

var dateLayouts = []string{
	"2006-01-02T15:04:05",
	time.RFC3339,
	"2006-01-02",
}

// ParseDate 解析 MS Project 日期，空值或无法解析时返回 fallback
func ParseDate(value string, fallback time.Time) time.Time {
	s := strings.TrimSpace(value)
	if s == "" {
		return fallback
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return fallback
}
