package pages

var Landing = `
<!DOCTYPE html>
<html>
<head>
    <title>Melodex API</title>
    <style>
        body {
            font-family: Arial, sans-serif;
            line-height: 1.6;
            max-width: 800px;
            margin: 0 auto;
            padding: 20px;
        }
        code {
            background: #f4f4f4;
            padding: 2px 6px;
            border-radius: 3px;
        }
    </style>
</head>
<body>
    <h1>Melodex</h1>
    <p>Multi-source instrumental music API.</p>
    <ul>
        <li><code>GET /api/music/search?q=...</code> — search every provider</li>
        <li><code>GET /api/music/instrumental?q=...</code> — instrumental-only search</li>
        <li><code>GET /api/music/recommendations</code> — discovery feed</li>
        <li><code>GET /api/music/curated</code> — editorially tagged instrumentals</li>
        <li><code>GET /api/music/trending</code> — trending tracks</li>
        <li><code>GET /api/songs/lyrics?title=...&artist=...</code> — lyrics lookup</li>
        <li><code>POST /api/resolve</code> — stream resolution for a track body</li>
    </ul>
</body>
</html>`
