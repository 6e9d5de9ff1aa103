package sqlite

const jobColumns = `
    id, video_id, video_title, playlist_id, channel_id,
    status, progress, created_at, started_at, completed_at,
    updated_at, next_attempt_at, error_message, retry_count,
    output_paths, metadata
`

const (
	insertJobQuery = `
        INSERT INTO jobs (
            id, video_id, video_title, playlist_id, channel_id,
            status, progress, created_at, updated_at, retry_count, metadata
        ) VALUES (?, ?, ?, ?, ?, 'pending', 0, ?, ?, 0, ?)
    `

	getJobQuery = `SELECT ` + jobColumns + ` FROM jobs WHERE id = ?`

	listJobsQuery = `SELECT ` + jobColumns + ` FROM jobs ORDER BY created_at ASC, rowid ASC`

	listJobsByStatusQuery = `SELECT ` + jobColumns + `
        FROM jobs WHERE status = ?
        ORDER BY created_at ASC, rowid ASC
    `

	activeByVideoQuery = `
        SELECT 1 FROM jobs
        WHERE video_id = ? AND status IN ('pending', 'processing')
        LIMIT 1
    `

	nextPendingQuery = `
        SELECT id FROM jobs
        WHERE status = 'pending'
          AND (next_attempt_at IS NULL OR next_attempt_at <= ?)
        ORDER BY created_at ASC, rowid ASC
        LIMIT 1
    `

	claimJobQuery = `
        UPDATE jobs SET
            status = 'processing',
            progress = 0,
            started_at = ?,
            next_attempt_at = NULL,
            updated_at = ?
        WHERE id = ? AND status = 'pending'
    `

	updateProgressQuery = `
        UPDATE jobs SET
            progress = MAX(progress, ?),
            updated_at = ?
        WHERE id = ? AND status = 'processing'
    `

	updateOutputPathsQuery = `
        UPDATE jobs SET
            output_paths = ?,
            updated_at = ?
        WHERE id = ? AND status = 'processing'
    `

	completeJobQuery = `
        UPDATE jobs SET
            status = 'completed',
            progress = 100,
            output_paths = ?,
            error_message = NULL,
            completed_at = ?,
            updated_at = ?
        WHERE id = ? AND status = 'processing'
    `

	requeueFailedJobQuery = `
        UPDATE jobs SET
            status = 'pending',
            progress = 0,
            retry_count = ?,
            error_message = ?,
            started_at = NULL,
            next_attempt_at = ?,
            output_paths = NULL,
            updated_at = ?
        WHERE id = ? AND status = 'processing'
    `

	failJobQuery = `
        UPDATE jobs SET
            status = 'failed',
            progress = 0,
            retry_count = ?,
            error_message = ?,
            completed_at = ?,
            output_paths = NULL,
            updated_at = ?
        WHERE id = ? AND status = 'processing'
    `

	deleteJobQuery = `DELETE FROM jobs WHERE id = ?`

	recoverRetryableQuery = `
        UPDATE jobs SET
            status = 'pending',
            progress = 0,
            started_at = NULL,
            error_message = NULL,
            output_paths = NULL,
            updated_at = ?
        WHERE status = 'processing' AND retry_count < ?
    `

	recoverExhaustedQuery = `
        UPDATE jobs SET
            status = 'failed',
            progress = 0,
            error_message = ?,
            completed_at = ?,
            output_paths = NULL,
            updated_at = ?
        WHERE status = 'processing'
    `

	statsQuery = `SELECT status, COUNT(*) FROM jobs GROUP BY status`
)
