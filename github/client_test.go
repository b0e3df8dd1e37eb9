package github

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestParsePullRequestURL(t *testing.T) {
	tests := []struct {
		name      string
		url       string
		wantOwner string
		wantRepo  string
		wantNum   int
		wantErr   bool
	}{
		{
			name:      "standard URL",
			url:       "https://github.com/golang/go/pull/12345",
			wantOwner: "golang",
			wantRepo:  "go",
			wantNum:   12345,
		},
		{
			name:      "no scheme",
			url:       "github.com/owner/repo/pull/7",
			wantOwner: "owner",
			wantRepo:  "repo",
			wantNum:   7,
		},
		{
			name:      "trailing path segments",
			url:       "https://github.com/owner/repo/pull/42/files",
			wantOwner: "owner",
			wantRepo:  "repo",
			wantNum:   42,
		},
		{
			name:    "issue URL",
			url:     "https://github.com/owner/repo/issues/42",
			wantErr: true,
		},
		{
			name:    "not a github URL",
			url:     "https://gitlab.com/owner/repo/pull/42",
			wantErr: true,
		},
		{
			name:    "empty",
			url:     "",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			owner, repo, num, err := ParsePullRequestURL(tt.url)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParsePullRequestURL(%q) error = %v, wantErr %v", tt.url, err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if owner != tt.wantOwner || repo != tt.wantRepo || num != tt.wantNum {
				t.Errorf("got (%s, %s, %d), want (%s, %s, %d)", owner, repo, num, tt.wantOwner, tt.wantRepo, tt.wantNum)
			}
		})
	}
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := NewTokenClient("test-token")
	client.SetBaseURL(server.URL)
	return client
}

func TestFetchDiff(t *testing.T) {
	const diff = "diff --git a/main.go b/main.go\n@@ -1,1 +1,1 @@\n-old\n+new\n"

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/repos/owner/repo/pulls/5" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("Accept"); got != "application/vnd.github.diff" {
			t.Errorf("Accept = %s", got)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			t.Errorf("Authorization = %s", got)
		}
		w.Write([]byte(diff))
	})

	got, err := client.FetchDiff(context.Background(), "owner", "repo", 5)
	if err != nil {
		t.Fatalf("FetchDiff() error = %v", err)
	}
	if got != diff {
		t.Errorf("FetchDiff() = %q, want %q", got, diff)
	}
}

func TestFetchDiffError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message": "Not Found"}`, http.StatusNotFound)
	})

	if _, err := client.FetchDiff(context.Background(), "owner", "repo", 5); err == nil {
		t.Fatal("FetchDiff() should fail on 404")
	}
}

func TestGetPullRequest(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/repos/owner/repo/pulls/9" {
			t.Errorf("path = %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"number": 9, "title": "Fix race", "body": "Details", "state": "open"}`))
	})

	pr, err := client.GetPullRequest(context.Background(), "owner", "repo", 9)
	if err != nil {
		t.Fatalf("GetPullRequest() error = %v", err)
	}
	if pr.Number != 9 || pr.Title != "Fix race" || pr.State != "open" {
		t.Errorf("GetPullRequest() = %+v", pr)
	}
}

func TestFetchPullRequestFiles(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/repos/owner/repo/pulls/3/files" {
			t.Errorf("path = %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"filename": "main.go", "status": "modified", "additions": 3, "deletions": 1}]`))
	})

	files, err := client.FetchPullRequestFiles(context.Background(), "owner", "repo", 3)
	if err != nil {
		t.Fatalf("FetchPullRequestFiles() error = %v", err)
	}
	if len(files) != 1 || files[0].Filename != "main.go" || files[0].Additions != 3 {
		t.Errorf("FetchPullRequestFiles() = %+v", files)
	}
}

func TestCreateIssueComment(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "POST" || r.URL.Path != "/repos/owner/repo/issues/3/comments" {
			t.Errorf("%s %s", r.Method, r.URL.Path)
		}
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"id": 77, "body": "review text"}`))
	})

	comment, err := client.CreateIssueComment(context.Background(), "owner", "repo", 3, "review text")
	if err != nil {
		t.Fatalf("CreateIssueComment() error = %v", err)
	}
	if comment.ID != 77 {
		t.Errorf("comment.ID = %d, want 77", comment.ID)
	}
}
