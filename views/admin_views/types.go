package admin_views

import "fmt"

// Flash is the message left behind by the previous admin action.
type Flash struct {
	Type    string
	Message string
}

func (f Flash) IsError() bool {
	return f.Type == "error"
}

// Section is one row of the dashboard.
type Section struct {
	Name  string
	Title string
	// Count is negative when the table could not be counted.
	Count int64
}

// ListPage is one page of rows of a binding.
type ListPage struct {
	Name     string
	Title    string
	Columns  []string
	Rows     [][]string
	Total    int64
	Page     int
	PrevPage int
	NextPage int
}

func (p ListPage) PageURL(page int) string {
	return fmt.Sprintf("/admin/%s?page=%d", p.Name, page)
}

// DeleteURL targets the row's id, which is always the first column.
func (p ListPage) DeleteURL(row []string) string {
	id := ""
	if len(row) > 0 {
		id = row[0]
	}
	return "/admin/" + p.Name + "/delete/" + id
}
