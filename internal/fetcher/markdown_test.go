package fetcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const careersPage = `<html>
<head><title>Careers</title><style>body{color:red}</style></head>
<body>
  <script>track()</script>
  <nav><a href="/">Home</a></nav>
  <h1>Open   roles</h1>
  <p>We are hiring across
     several teams.</p>
  <img src="team.png">
  <ul>
    <li><a href="/jobs/pm-1">Product Manager</a></li>
    <li><a href="https://boards.example.com/jobs/2">Associate Consultant</a></li>
  </ul>
  <table><tr><td>Location</td><td>Remote</td></tr></table>
  <button>Apply now</button>
  <svg><path d="M0"/></svg>
  <footer><a href="https://twitter.com/acme">Twitter</a></footer>
</body>
</html>`

func TestClean_StripsNoise(t *testing.T) {
	cleaned, _, err := Clean(careersPage)
	require.NoError(t, err)

	for _, tag := range []string{"<script", "<style", "<img", "<head", "<footer", "<svg"} {
		assert.NotContains(t, cleaned, tag)
	}
	assert.Contains(t, cleaned, "Product Manager")
}

func TestClean_Markdown(t *testing.T) {
	_, md, err := Clean(careersPage)
	require.NoError(t, err)

	assert.Contains(t, md, "# Open roles")
	assert.Contains(t, md, "We are hiring across several teams.")
	assert.Contains(t, md, "- [Product Manager](/jobs/pm-1)")
	assert.Contains(t, md, "- [Associate Consultant](https://boards.example.com/jobs/2)")
	assert.Contains(t, md, "| Location | Remote |")
	assert.Contains(t, md, "[Apply now]")
	assert.Contains(t, md, "[Home](/)")

	assert.NotContains(t, md, "track()")
	assert.NotContains(t, md, "twitter.com")
	assert.NotContains(t, md, "\n\n\n")
}

func TestClean_Empty(t *testing.T) {
	_, md, err := Clean("<html><body></body></html>")
	require.NoError(t, err)
	assert.Empty(t, md)
}
