package repository

const selectFirstInstance = `
SELECT id, instance_id, created_at
FROM telemetry_instancetelemetry
ORDER BY id ASC
LIMIT 1`

const insertInstance = `
INSERT INTO telemetry_instancetelemetry (instance_id, created_at)
VALUES ($1, $2)
RETURNING id, instance_id, created_at`
